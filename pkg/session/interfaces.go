package session

import "context"

// Store mirrors the conversation log for a single, fixed session key.
// Implementations are passive: they never see placeholder entries.
type Store interface {
	// Load returns the persisted log. ok is false when nothing was stored yet.
	Load(ctx context.Context) (msgs []Message, ok bool, err error)
	Save(ctx context.Context, msgs []Message) error
	Clear(ctx context.Context) error
}

// ReplyRequest is one exchange with the remote reply service. History holds
// the log up to and including the new user message, without the placeholder.
type ReplyRequest struct {
	Message string
	History []Message
}

// Reply is a successful answer of the reply service.
type Reply struct {
	Text                 string
	RecommendedQuestions []string
}

// Replier issues a single request to the remote reply service. Any returned
// error is treated as a connection failure.
type Replier interface {
	Reply(ctx context.Context, req ReplyRequest) (*Reply, error)
}

// View receives a fresh projection of the session state after every change.
// Render is called with the manager lock held and must not call back into the
// manager.
type View interface {
	Render(s Snapshot)
}

type ViewFunc func(s Snapshot)

func (f ViewFunc) Render(s Snapshot) { f(s) }

type noopView struct{}

func (noopView) Render(Snapshot) {}

// EventSink receives best-effort notifications about session activity.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}
