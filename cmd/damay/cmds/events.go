package cmds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/damay/pkg/events"
	"github.com/go-go-golems/damay/pkg/redisstream"
)

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with the session event stream",
	}
	cmd.AddCommand(newEventsTailCommand(a))
	return cmd
}

func newEventsTailCommand(a *app) *cobra.Command {
	var asJSON bool
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow session events published to the redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings.Events.WithDefaults()
			ctx := cmd.Context()

			group := s.Group
			consumer := s.Consumer
			if !fromStart {
				// a fresh group per tail so only new events are shown
				group = s.Group + "-" + uuid.NewString()[:8]
				if err := redisstream.EnsureGroupAtTail(ctx, s.Addr, s.Stream, group); err != nil {
					return err
				}
			}
			sub, closeSub, err := redisstream.BuildGroupSubscriber(s.Addr, group, consumer)
			if err != nil {
				return err
			}
			defer func() { _ = closeSub() }()

			out := cmd.OutOrStdout()
			err = events.Consume(ctx, sub, s.Stream, func(_ context.Context, env events.Envelope) error {
				if asJSON {
					b, err := json.Marshal(env)
					if err != nil {
						return errors.Wrap(err, "encode event")
					}
					_, err = fmt.Fprintln(out, string(b))
					return err
				}
				_, err := fmt.Fprintln(out, events.FormatLine(env))
				return err
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON lines")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "read through the configured consumer group, including unread history")
	return cmd
}
