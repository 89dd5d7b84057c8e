package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)
}

// RedisRepository keeps session records in Redis with the session TTL and
// indexes them per user.
type RedisRepository struct {
	client *redis.Client
}

// NewRepository constructs a Redis repository.
func NewRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func sessionKey(id string) string { return "warehouse:login:" + id }

func userSessionsKey(userID string) string { return "warehouse:user-logins:" + userID }

// CreateSession stores rec until it expires.
func (r *RedisRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return errors.New("auth: session already expired")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(rec.ID), data, ttl)
	pipe.SAdd(ctx, userSessionsKey(rec.UserID), rec.ID)
	pipe.Expire(ctx, userSessionsKey(rec.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("auth: store session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (r *RedisRepository) DeleteSession(ctx context.Context, id string) error {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: load session: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("auth: decode session: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userSessionsKey(rec.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// ListSessions returns the live sessions of a user and prunes expired ids.
func (r *RedisRepository) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("auth: list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("auth: load sessions: %w", err)
	}
	var (
		records []SessionRecord
		stale   []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("auth: decode session: %w", err)
		}
		records = append(records, rec)
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, userSessionsKey(userID), stale...).Err()
	}
	return records, nil
}

var _ Repository = (*RedisRepository)(nil)
