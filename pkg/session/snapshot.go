package session

// Snapshot is a read-only projection of the session state. Views render it
// and never read state back from what they displayed.
type Snapshot struct {
	// Messages is the visible log, including the placeholder while pending.
	Messages []Message
	// Welcome is the welcome text when the log is empty, "" otherwise.
	Welcome         string
	Recommendations []string
	Pending         bool
	// RerollIndex is the index of the bot message carrying the reroll
	// affordance, or -1.
	RerollIndex int
}

// LastBotMessage returns the most recent non-placeholder bot message.
func (s Snapshot) LastBotMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if msg.Role == RoleBot && !msg.IsPlaceholder() {
			return msg, true
		}
	}
	return Message{}, false
}
