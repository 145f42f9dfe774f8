package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// LogTranscript consumes events and writes them to logger at debug level. It
// is used with the in-process transport so a session leaves a trace in the
// log file.
func LogTranscript(ctx context.Context, sub message.Subscriber, topic string, logger zerolog.Logger) error {
	return Consume(ctx, sub, topic, func(_ context.Context, env Envelope) error {
		ev := logger.Debug().
			Str("session", env.SessionKey).
			Str("event", string(env.Event.Type)).
			Int("log_length", env.Event.LogLength)
		if env.Event.Text != "" {
			ev = ev.Str("text", env.Event.Text)
		}
		if len(env.Event.Recommendations) > 0 {
			ev = ev.Strs("recommendations", env.Event.Recommendations)
		}
		if env.Event.Error != "" {
			ev = ev.Str("error", env.Event.Error)
		}
		ev.Msg("session event")
		return nil
	})
}

// FormatLine renders an envelope as a single human-readable line.
func FormatLine(env Envelope) string {
	var b strings.Builder
	b.WriteString(env.Time.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(env.SessionKey)
	b.WriteString(" ")
	b.WriteString(string(env.Event.Type))
	fmt.Fprintf(&b, " len=%d", env.Event.LogLength)
	if env.Event.Text != "" {
		fmt.Fprintf(&b, " text=%q", env.Event.Text)
	}
	for i, r := range env.Event.Recommendations {
		fmt.Fprintf(&b, " [%d]=%q", i+1, r)
	}
	if env.Event.Error != "" {
		fmt.Fprintf(&b, " error=%q", env.Event.Error)
	}
	return b.String()
}
