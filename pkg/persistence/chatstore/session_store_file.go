package chatstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/damay/pkg/session"
)

// FileStore persists the log of one session key as a JSON file.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	path string
}

var _ session.Store = &FileStore{}

func NewFileStore(dir, sessionKey string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("file session store: directory is empty")
	}
	if strings.TrimSpace(sessionKey) == "" {
		return nil, errors.New("file session store: session key is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "file session store: create directory")
	}
	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, sanitizeKey(sessionKey)+".json"),
	}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]session.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "file session store: read")
	}
	msgs, err := decodeLog(raw)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

// Save replaces the file atomically through a temp file and rename.
func (s *FileStore) Save(_ context.Context, msgs []session.Message) error {
	payload, err := encodeLog(msgs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "session-*.json")
	if err != nil {
		return errors.Wrap(err, "file session store: create temp file")
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: persist")
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "file session store: remove")
	}
	return nil
}

func sanitizeKey(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
