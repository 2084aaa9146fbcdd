package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dbdemo/showcase/internal/model"
)

// RedisStore keeps sessions as JSON values under session:<id>
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redisClient, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.redis.Get(ctx, key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key(sess.ID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, key(id)).Err()
}

func key(id string) string {
	return fmt.Sprintf("session:%s", id)
}
