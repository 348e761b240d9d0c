package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is returned by GetJSON for missing keys.
var ErrNotFound = errors.New("key not found")

// StatusStore keeps small operational records (such as the last warm-up
// report) in Redis so every instance and operator tooling can read them.
type StatusStore struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewStatus connects to Redis and verifies the connection.
func NewStatus(ctx context.Context, addr string, db int, logger *zap.Logger) (*StatusStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewStatusFromClient(rdb, logger), nil
}

// NewStatusFromClient wraps an existing client.
func NewStatusFromClient(rdb *redis.Client, logger *zap.Logger) *StatusStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusStore{redis: rdb, logger: logger}
}

func (s *StatusStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("store.redis.set_failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *StatusStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *StatusStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *StatusStore) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
