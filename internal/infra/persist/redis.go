package persist

import (
	"context"
	"errors"

	redisclient "github.com/vietddude/tradeup/internal/infra/redis"
)

// RedisStore keeps the record under a single Redis key. SET replaces the
// whole value, which gives the same unit of work as the file rename.
type RedisStore struct {
	client *redisclient.Client
	name   string
}

// NewRedisStore creates a store for the record called name.
func NewRedisStore(client *redisclient.Client, name string) *RedisStore {
	return &RedisStore{client: client, name: name}
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.name)
	if errors.Is(err, redisclient.ErrNil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *RedisStore) Replace(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.name, data)
}

func (s *RedisStore) Remove(ctx context.Context) error {
	return s.client.Del(ctx, s.name)
}

func (s *RedisStore) Location() string {
	return "redis://" + s.client.Key(s.name)
}
