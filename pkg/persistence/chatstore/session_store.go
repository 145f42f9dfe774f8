package chatstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/go-go-golems/damay/pkg/session"
)

// DefaultSessionKey is the key the conversation log is mirrored under.
const DefaultSessionKey = "chatHistory"

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Settings selects and configures the session store backend.
type Settings struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	SessionKey string        `mapstructure:"session-key" yaml:"session-key"`
	Dir        string        `mapstructure:"dir" yaml:"dir,omitempty"`
	DB         string        `mapstructure:"db" yaml:"db,omitempty"`
	DSN        string        `mapstructure:"dsn" yaml:"dsn,omitempty"`
	RedisAddr  string        `mapstructure:"redis-addr" yaml:"redis-addr,omitempty"`
	RedisDB    int           `mapstructure:"redis-db" yaml:"redis-db,omitempty"`
	RedisTTL   time.Duration `mapstructure:"redis-ttl" yaml:"redis-ttl,omitempty"`
	// RedisPassword is read from the environment or flags only.
	RedisPassword string `mapstructure:"redis-password" yaml:"-"`
}

// Open builds the store described by settings. The returned cleanup func is
// never nil and releases backend resources.
func Open(ctx context.Context, settings Settings) (session.Store, func(), error) {
	noop := func() {}
	key := strings.TrimSpace(settings.SessionKey)
	if key == "" {
		key = DefaultSessionKey
	}

	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), noop, nil

	case BackendFile:
		s, err := NewFileStore(settings.Dir, key)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case BackendSQLite:
		dsn := strings.TrimSpace(settings.DSN)
		if dsn == "" {
			db := strings.TrimSpace(settings.DB)
			if db == "" {
				return nil, noop, errors.New("sqlite session store: neither dsn nor db path configured")
			}
			if dir := filepath.Dir(db); dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, noop, errors.Wrap(err, "create sqlite db dir")
				}
			}
			var err error
			dsn, err = SQLiteDSNForFile(db)
			if err != nil {
				return nil, noop, err
			}
		}
		s, err := NewSQLiteStore(dsn, key)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil

	case BackendRedis:
		addr := strings.TrimSpace(settings.RedisAddr)
		if addr == "" {
			return nil, noop, errors.New("redis session store: redis-addr is empty")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, errors.Wrapf(err, "redis session store: ping %s", addr)
		}
		s, err := NewRedisStore(client, key, settings.RedisTTL)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil

	default:
		return nil, noop, errors.Errorf("unknown session store backend %q", settings.Backend)
	}
}

func encodeLog(msgs []session.Message) ([]byte, error) {
	b, err := json.Marshal(session.Persistable(msgs))
	if err != nil {
		return nil, errors.Wrap(err, "encode conversation log")
	}
	return b, nil
}

func decodeLog(raw []byte) ([]session.Message, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []session.Message{}, nil
	}
	var msgs []session.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode conversation log")
	}
	return session.Persistable(msgs), nil
}
