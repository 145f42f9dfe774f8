package cmds

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/damay/pkg/chatclient"
	"github.com/go-go-golems/damay/pkg/config"
	"github.com/go-go-golems/damay/pkg/events"
	"github.com/go-go-golems/damay/pkg/persistence/chatstore"
	"github.com/go-go-golems/damay/pkg/redisstream"
	"github.com/go-go-golems/damay/pkg/session"
	"github.com/go-go-golems/damay/pkg/ui"
)

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a chat session (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a)
		},
	}
}

func runChat(ctx context.Context, a *app) error {
	s := a.settings

	store, closeStore, err := chatstore.Open(ctx, s.Store)
	if err != nil {
		return errors.Wrap(err, "open session store")
	}
	defer closeStore()

	client, err := chatclient.New(s.Endpoint,
		chatclient.WithTimeout(s.Timeout),
		chatclient.WithHistory(s.SendHistory),
	)
	if err != nil {
		return err
	}

	transport, err := redisstream.BuildTransport(s.Events)
	if err != nil {
		return errors.Wrap(err, "build event transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Debug().Err(err).Msg("closing event transport")
		}
	}()
	sink, err := events.NewPublisher(transport.Publisher, transport.Topic, s.Store.SessionKey)
	if err != nil {
		return err
	}

	mode := resolveMode(s.Mode)
	var view session.View
	var feed *ui.SnapshotFeed
	if mode == config.ModeTUI {
		feed = ui.NewSnapshotFeed()
		view = feed
	} else {
		view = ui.NewLineView(os.Stdout, ui.WithLineWidth(ui.TerminalWidth(os.Stdout)))
	}

	mgr, err := session.NewManager(store, client,
		session.WithView(view),
		session.WithEventSink(sink),
		session.WithWelcome(s.Welcome),
	)
	if err != nil {
		return err
	}

	log.Info().
		Str("endpoint", client.Endpoint()).
		Str("mode", mode).
		Str("store", s.Store.Backend).
		Bool("redis_events", transport.Redis).
		Msg("starting chat session")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if transport.Subscriber != nil {
		eg.Go(func() error {
			return events.LogTranscript(ctx, transport.Subscriber, transport.Topic, log.Logger)
		})
	}

	eg.Go(func() error {
		defer cancel()
		if err := mgr.Restore(ctx); err != nil {
			log.Warn().Err(err).Msg("starting with an empty conversation")
		}
		if mode == config.ModeTUI {
			return ui.Run(ctx, mgr, feed)
		}
		return ui.RunLines(ctx, mgr, os.Stdin, os.Stdout)
	})

	return eg.Wait()
}
