package session

type EventType string

const (
	EventRestored  EventType = "restored"
	EventReset     EventType = "reset"
	EventSubmitted EventType = "submitted"
	EventReplied   EventType = "replied"
	EventFailed    EventType = "failed"
	EventRerolled  EventType = "rerolled"
)

// Event describes one state transition of a Manager.
type Event struct {
	Type            EventType `json:"type"`
	Text            string    `json:"text,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Error           string    `json:"error,omitempty"`
	LogLength       int       `json:"log_length"`
}
