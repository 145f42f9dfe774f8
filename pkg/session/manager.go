package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrBusy is returned when a submission arrives while a reply is still pending.
var ErrBusy = errors.New("session: a reply is still pending")

// ErrNoRecommendation is returned when selecting a chip that is not displayed.
var ErrNoRecommendation = errors.New("session: no such recommendation")

// Manager owns the conversation log and the recommendation set of one chat
// session, mirrors the log to a Store and drives at most one outstanding
// exchange with the reply service.
type Manager struct {
	store   Store
	replier Replier
	view    View
	sink    EventSink
	welcome string
	logger  zerolog.Logger

	mu              sync.Mutex
	log             []Message
	recommendations []string
	pending         bool
	cancel          context.CancelFunc
	// generation is bumped by Reset so that replies of abandoned exchanges
	// are dropped.
	generation uint64
}

type ManagerOption func(*Manager)

func WithView(v View) ManagerOption {
	return func(m *Manager) {
		if v != nil {
			m.view = v
		}
	}
}

func WithEventSink(sink EventSink) ManagerOption {
	return func(m *Manager) {
		m.sink = sink
	}
}

func WithWelcome(text string) ManagerOption {
	return func(m *Manager) {
		if strings.TrimSpace(text) != "" {
			m.welcome = text
		}
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(store Store, replier Replier, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session manager: store is nil")
	}
	if replier == nil {
		return nil, errors.New("session manager: replier is nil")
	}
	m := &Manager{
		store:   store,
		replier: replier,
		view:    noopView{},
		welcome: DefaultWelcome,
		logger:  log.Logger.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Restore loads the log from the store and renders it. When nothing is stored
// (or loading fails) the session starts empty and shows the welcome message.
func (m *Manager) Restore(ctx context.Context) error {
	msgs, ok, loadErr := m.store.Load(ctx)

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return ErrBusy
	}
	m.recommendations = nil
	if loadErr != nil || !ok {
		m.log = nil
	} else {
		m.log = Persistable(msgs)
	}
	m.renderLocked()
	ev := Event{Type: EventRestored, LogLength: len(m.log)}
	m.mu.Unlock()

	if loadErr != nil {
		m.logger.Warn().Err(loadErr).Msg("could not load conversation log, starting empty")
		ev.Error = loadErr.Error()
	}
	m.emit(ctx, ev)
	if loadErr != nil {
		return errors.Wrap(loadErr, "restore session")
	}
	return nil
}

// Reset clears the log and the recommendations in memory and in the store and
// shows the welcome message again. An exchange still in flight is cancelled
// and its outcome discarded.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.generation++
	m.pending = false
	m.log = nil
	m.recommendations = nil
	clearErr := m.store.Clear(ctx)
	m.renderLocked()
	m.mu.Unlock()

	ev := Event{Type: EventReset}
	if clearErr != nil {
		m.logger.Warn().Err(clearErr).Msg("could not clear persisted conversation log")
		ev.Error = clearErr.Error()
	}
	m.emit(ctx, ev)
	if clearErr != nil {
		return errors.Wrap(clearErr, "reset session")
	}
	return nil
}

// Submit sends text to the reply service. Empty or whitespace-only text is
// ignored. Submit blocks until the exchange completes; callers that must stay
// responsive run it on their own goroutine. It returns ErrBusy while another
// exchange is pending. Failures of the exchange itself are recorded in the
// log and never returned.
func (m *Manager) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return ErrBusy
	}
	ex := m.beginLocked(ctx, text)
	m.mu.Unlock()

	m.emit(ctx, Event{Type: EventSubmitted, Text: text, LogLength: len(ex.history)})
	m.send(ex)
	return nil
}

// SelectRecommendation submits the text of the i-th displayed chip.
func (m *Manager) SelectRecommendation(ctx context.Context, i int) error {
	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return ErrBusy
	}
	if i < 0 || i >= len(m.recommendations) {
		m.mu.Unlock()
		return errors.Wrapf(ErrNoRecommendation, "index %d", i)
	}
	text := m.recommendations[i]
	ex := m.beginLocked(ctx, text)
	m.mu.Unlock()

	m.emit(ctx, Event{Type: EventSubmitted, Text: text, LogLength: len(ex.history)})
	m.send(ex)
	return nil
}

// Reroll discards the latest bot reply and asks again with the user message
// that triggered it. Without such a pair at the end of the log it is a no-op.
func (m *Manager) Reroll(ctx context.Context) error {
	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return ErrBusy
	}
	idx := m.rerollIndexLocked()
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	text := m.log[idx-1].Content
	m.log = m.log[:idx-1]
	ex := m.beginLocked(ctx, text)
	m.mu.Unlock()

	m.emit(ctx, Event{Type: EventRerolled, Text: text, LogLength: len(ex.history)})
	m.send(ex)
	return nil
}

// Snapshot returns the current projection of the session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Busy reports whether an exchange is in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

type exchange struct {
	parent     context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	text       string
	history    []Message
}

// beginLocked appends the user message and the placeholder and marks the
// session as pending.
func (m *Manager) beginLocked(ctx context.Context, text string) exchange {
	m.log = append(m.log, NewUserMessage(text))
	m.recommendations = nil
	m.renderLocked()

	m.log = append(m.log, newPlaceholder())
	m.pending = true
	m.generation++
	exCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.renderLocked()

	history := make([]Message, len(m.log)-1)
	copy(history, m.log[:len(m.log)-1])
	return exchange{
		parent:     ctx,
		ctx:        exCtx,
		cancel:     cancel,
		generation: m.generation,
		text:       text,
		history:    history,
	}
}

func (m *Manager) send(ex exchange) {
	logger := m.logger.With().Int("history", len(ex.history)).Logger()
	logger.Debug().Str("message", ex.text).Msg("sending message")

	reply, err := m.replier.Reply(ex.ctx, ReplyRequest{Message: ex.text, History: ex.history})
	ex.cancel()

	m.mu.Lock()
	if ex.generation != m.generation {
		m.mu.Unlock()
		logger.Debug().Msg("discarding reply of an abandoned exchange")
		return
	}
	m.removePlaceholderLocked()
	m.pending = false
	m.cancel = nil

	if err != nil && ex.parent.Err() != nil {
		// the caller is gone (e.g. the program is quitting); nothing is
		// recorded or persisted for this exchange
		m.renderLocked()
		m.mu.Unlock()
		logger.Debug().Err(err).Msg("exchange abandoned by caller")
		return
	}

	var ev Event
	if err != nil {
		logger.Warn().Err(err).Msg("reply service failed")
		m.log = append(m.log, NewBotMessage(ConnectionErrorReply))
		ev = Event{Type: EventFailed, Text: ConnectionErrorReply, Error: err.Error()}
	} else {
		text := FallbackReply
		var questions []string
		if reply != nil {
			if reply.Text != "" {
				text = reply.Text
			}
			questions = reply.RecommendedQuestions
		}
		m.log = append(m.log, NewBotMessage(text))
		m.recommendations = normalizeRecommendations(questions)
		ev = Event{Type: EventReplied, Text: text, Recommendations: append([]string(nil), m.recommendations...)}
	}
	m.renderLocked()
	ev.LogLength = len(m.log)

	// Saving under the lock keeps a later Reset from being overwritten.
	ctx := context.WithoutCancel(ex.parent)
	if saveErr := m.store.Save(ctx, Persistable(m.log)); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("could not persist conversation log")
	}
	m.mu.Unlock()

	m.emit(ctx, ev)
}

func (m *Manager) removePlaceholderLocked() {
	n := len(m.log)
	if n > 0 && m.log[n-1].IsPlaceholder() {
		m.log = m.log[:n-1]
		return
	}
	m.log = Persistable(m.log)
}

func (m *Manager) rerollIndexLocked() int {
	if m.pending {
		return -1
	}
	n := len(m.log)
	if n < 2 || m.log[n-1].Role != RoleBot || m.log[n-2].Role != RoleUser {
		return -1
	}
	return n - 1
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		Messages:    append([]Message(nil), m.log...),
		Pending:     m.pending,
		RerollIndex: m.rerollIndexLocked(),
	}
	if len(m.recommendations) > 0 {
		s.Recommendations = append([]string(nil), m.recommendations...)
	}
	if len(m.log) == 0 {
		s.Welcome = m.welcome
	}
	return s
}

func (m *Manager) renderLocked() {
	m.view.Render(m.snapshotLocked())
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Emit(ctx, ev); err != nil {
		m.logger.Debug().Err(err).Str("event", string(ev.Type)).Msg("could not emit session event")
	}
}
