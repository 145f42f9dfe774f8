package cmds

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/damay/pkg/config"
	"github.com/go-go-golems/damay/pkg/logging"
)

// app carries the state shared by all subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	v          *viper.Viper
	configFile string
	configUsed string
	settings   *config.Settings
	logCloser  io.Closer
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"endpoint":     "endpoint",
	"timeout":      "timeout",
	"send-history": "send-history",
	"welcome":      "welcome",
	"mode":         "mode",
	"store":        "store.backend",
	"store-dir":    "store.dir",
	"store-db":     "store.db",
	"session-key":  "store.session-key",
	"redis-addr":   "store.redis-addr",
	"events-redis": "events.redis-enabled",
	"log-level":    "log.level",
	"log-file":     "log.file",
	"with-caller":  "log.with-caller",
}

func NewRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "damay",
		Short: "Chat with Damay, the SMKN 2 Indramayu assistant, from the terminal",
		Long: `damay keeps a conversation with the Damay reply service. The log is
mirrored to a session store so it survives restarts, and replies come with
suggested follow-up questions.

Without a subcommand damay starts the chat: a full-screen UI on a terminal,
a plain line-oriented loop otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ~/.damay/config.yaml)")
	pf.String("endpoint", config.DefaultEndpoint, "URL of the reply service chat endpoint")
	pf.Duration("timeout", config.DefaultTimeout, "timeout for a single exchange (0 disables)")
	pf.Bool("send-history", true, "send the conversation history with every message")
	pf.String("welcome", "", "welcome message shown for an empty conversation")
	pf.String("mode", config.ModeAuto, "chat surface: auto, tui or line")
	pf.String("store", config.DefaultStoreBackend, "session store backend: memory, file, sqlite or redis")
	pf.String("store-dir", "", "directory of the file session store")
	pf.String("store-db", "", "database file of the sqlite session store")
	pf.String("session-key", "", "key the conversation is stored under")
	pf.String("redis-addr", "", "redis address of the redis session store")
	pf.Bool("events-redis", false, "publish session events to a redis stream")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-file", "", "write logs to this file instead of stderr")
	pf.Bool("with-caller", false, "log caller information")

	for flag, key := range flagKeys {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(errors.Wrapf(err, "bind flag %s", flag))
		}
	}

	root.AddCommand(
		newChatCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newEventsCommand(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	used, err := config.ReadConfigFile(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.configUsed = used

	s, err := config.Load(a.v)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	a.settings = s

	logSettings := s.Log
	// a full-screen UI owns the terminal, so its logs go to a file
	if logSettings.File == "" && isChatCommand(cmd) && resolveMode(s.Mode) == config.ModeTUI {
		logSettings.File = filepath.Join(config.DefaultDir(), "damay.log")
	}
	closer, err := logging.Init(logSettings, os.Stderr)
	if err != nil {
		return err
	}
	a.logCloser = closer

	log.Debug().
		Str("config", used).
		Str("endpoint", s.Endpoint).
		Str("store", s.Store.Backend).
		Msg("configuration loaded")
	return nil
}

// resolveMode turns auto into tui or line depending on whether stdin and
// stdout are terminals.
func resolveMode(mode string) string {
	if mode != config.ModeAuto {
		return mode
	}
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return config.ModeTUI
	}
	return config.ModeLine
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func isChatCommand(cmd *cobra.Command) bool {
	return cmd == cmd.Root() || cmd.Name() == "chat"
}
