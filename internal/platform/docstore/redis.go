package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "warehouse:doc:"

// RedisStore persists documents as JSON strings without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, name string, dest any) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("docstore: redis store not initialised")
	}
	if err := validateName(name); err != nil {
		return false, err
	}
	payload, err := s.client.Get(ctx, redisKeyPrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, wrap("load", name, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, wrap("decode", name, err)
	}
	return true, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, name string, doc any) error {
	if s == nil || s.client == nil {
		return errors.New("docstore: redis store not initialised")
	}
	if err := validateName(name); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return wrap("encode", name, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+name, payload, 0).Err(); err != nil {
		return wrap("save", name, err)
	}
	return nil
}
