package chatstore

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/go-go-golems/damay/pkg/session"
)

const redisKeyPrefix = "damay:session:"

// RedisStore keeps the log under a single Redis key. A positive ttl lets the
// mirror expire on its own once the session has been idle long enough.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ session.Store = &RedisStore{}

func NewRedisStore(client redis.UniversalClient, sessionKey string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis session store: client is nil")
	}
	if strings.TrimSpace(sessionKey) == "" {
		return nil, errors.New("redis session store: session key is empty")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, key: redisKeyPrefix + sessionKey, ttl: ttl}, nil
}

func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Load(ctx context.Context) ([]session.Message, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis session store: get")
	}
	msgs, err := decodeLog(raw)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *RedisStore) Save(ctx context.Context, msgs []session.Message) error {
	payload, err := encodeLog(msgs)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis session store: set")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "redis session store: del")
	}
	return nil
}
