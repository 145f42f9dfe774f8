package session

import "strings"

// Role identifies who authored a message in the conversation log.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// PlaceholderContent is the content of the transient bot entry that stands in
// for a reply while a request is in flight. Entries carrying it are never
// persisted or shown as real content.
const PlaceholderContent = "loading"

const (
	// DefaultWelcome is shown whenever the conversation log is empty.
	DefaultWelcome = "Halo! Saya Damay, asisten AI dari SMKN 2 Indramayu. Ada yang bisa saya bantu?"
	// FallbackReply replaces a successful response without reply text.
	FallbackReply = "Maaf, terjadi kesalahan."
	// ConnectionErrorReply is recorded when the reply service cannot be reached
	// or answers with a failure.
	ConnectionErrorReply = "Maaf, sepertinya ada masalah dengan koneksi. Silakan coba lagi."
)

// Message is a single entry of the conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewBotMessage(content string) Message {
	return Message{Role: RoleBot, Content: content}
}

func newPlaceholder() Message {
	return Message{Role: RoleBot, Content: PlaceholderContent}
}

// IsPlaceholder reports whether m is the in-flight loading entry.
func (m Message) IsPlaceholder() bool {
	return m.Role == RoleBot && m.Content == PlaceholderContent
}

// Persistable returns a copy of msgs without placeholder entries. It is the
// only form of the log that is ever handed to a Store.
func Persistable(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IsPlaceholder() {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// QuestionText normalizes a recommended question for display and resubmission:
// surrounding whitespace is trimmed and a trailing "?" is added when missing.
func QuestionText(q string) string {
	q = strings.TrimSpace(q)
	if q == "" || strings.HasSuffix(q, "?") {
		return q
	}
	return q + "?"
}

// normalizeRecommendations turns the raw list returned by the reply service
// into chip labels, dropping blank entries.
func normalizeRecommendations(qs []string) []string {
	if len(qs) == 0 {
		return nil
	}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if text := QuestionText(q); text != "" {
			out = append(out, text)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
