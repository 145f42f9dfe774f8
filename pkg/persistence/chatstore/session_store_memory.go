package chatstore

import (
	"context"
	"sync"

	"github.com/go-go-golems/damay/pkg/session"
)

// MemoryStore keeps the log for the lifetime of the process, the same scope a
// browser tab gives its session storage.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []session.Message
	ok   bool
}

var _ session.Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]session.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return nil, false, nil
	}
	return append([]session.Message{}, s.msgs...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, msgs []session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = session.Persistable(msgs)
	s.ok = true
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	s.ok = false
	return nil
}
