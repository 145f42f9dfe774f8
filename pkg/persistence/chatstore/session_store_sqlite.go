package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/damay/pkg/session"
)

// SQLiteStore keeps one row per session key in the session_logs table.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

var _ session.Store = &SQLiteStore{}

func NewSQLiteStore(dsn, sessionKey string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite session store: empty dsn")
	}
	if strings.TrimSpace(sessionKey) == "" {
		return nil, errors.New("sqlite session store: session key is empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite session store: open")
	}
	s := &SQLiteStore{db: db, key: sessionKey}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_logs (
		  session_key TEXT PRIMARY KEY,
		  messages_json TEXT NOT NULL,
		  updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite session store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]session.Message, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM session_logs WHERE session_key = ?`, s.key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "sqlite session store: load")
	}
	msgs, err := decodeLog([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, msgs []session.Message) error {
	payload, err := encodeLog(msgs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_logs (session_key, messages_json, updated_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			messages_json = excluded.messages_json,
			updated_at_ms = excluded.updated_at_ms
	`, s.key, string(payload), time.Now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "sqlite session store: save")
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_logs WHERE session_key = ?`, s.key); err != nil {
		return errors.Wrap(err, "sqlite session store: clear")
	}
	return nil
}

// SQLiteDSNForFile returns a DSN with WAL and a busy timeout for a db file.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite session store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}
