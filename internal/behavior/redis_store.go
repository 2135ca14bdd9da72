package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/elder-shield/guardian-engine/internal/config"
)

const profileKeyPrefix = "guardian:profile:"

// RedisStore keeps profiles in Redis so they survive restarts. Staleness is
// handled by key TTL rather than an explicit sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	return &profile, nil
}

func (s *RedisStore) Save(ctx context.Context, profile *Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return errors.Wrap(err, "encode profile")
	}
	if err := s.client.Set(ctx, profileKeyPrefix+profile.UserID, data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}

// Cleanup is a no-op for Redis: the per-key TTL set on Save already expires
// stale profiles.
func (s *RedisStore) Cleanup(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, profileKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, "scan profiles")
	}
	return count, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
