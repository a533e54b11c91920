package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries under "<prefix>:<key>" with a TTL matching the
// entry expiry, so Redis evicts dead sessions on its own.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	if rdb == nil {
		panic("nil redis client passed to NewRedisStore")
	}
	return &RedisStore{rdb: rdb, prefix: "session", now: time.Now}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	return decodeEntry(s.rdb.Get(ctx, s.key(key)).Bytes())
}

// Take uses GETDEL so concurrent callers cannot both see the entry.
func (s *RedisStore) Take(ctx context.Context, key string) (Entry, error) {
	return decodeEntry(s.rdb.GetDel(ctx, s.key(key)).Bytes())
}

func decodeEntry(raw []byte, err error) (Entry, error) {
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Clear(ctx, key)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), raw, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
