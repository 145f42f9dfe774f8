package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings configures the global logger.
type Settings struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	WithCaller bool   `mapstructure:"with-caller" yaml:"with-caller,omitempty"`
	JSON       bool   `mapstructure:"json" yaml:"json,omitempty"`
	MaxSizeMB  int    `mapstructure:"max-size-mb" yaml:"max-size-mb,omitempty"`
	MaxBackups int    `mapstructure:"max-backups" yaml:"max-backups,omitempty"`
}

// ParseLevel converts a string level into zerolog.Level with a safe default.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

// Init configures log.Logger. When a file is set, logs go to a rotated file
// instead of stderr, which keeps a full-screen UI clean. The returned closer
// flushes the file writer.
func Init(s Settings, stderr io.Writer) (io.Closer, error) {
	zerolog.SetGlobalLevel(ParseLevel(s.Level))

	var w io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(s.File) != "" {
		if err := os.MkdirAll(filepath.Dir(s.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    orDefault(s.MaxSizeMB, 10),
			MaxBackups: orDefault(s.MaxBackups, 3),
		}
		w = lj
		closer = lj
	} else if !s.JSON {
		w = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return closer, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
