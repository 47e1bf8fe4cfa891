package profile

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the connection used by the redis-backed profile
// store.
type RedisConfig struct {
	ConnectionURL  string        `env:"PROFILE_REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"PROFILE_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"PROFILE_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"PROFILE_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	KeyPrefix      string        `env:"PROFILE_REDIS_KEY_PREFIX" envDefault:"profile:"`
	TTL            time.Duration `env:"PROFILE_REDIS_TTL" envDefault:"0"` // 0 keeps profiles forever
}

// Connect establishes a redis connection for profile storage, retrying per
// the config before giving up.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	for i := 0; i < cfg.RetryAttempts; i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		default:
			time.Sleep(cfg.RetryInterval)
		}
	}

	return nil, ErrRedisNotReady
}

// RedisStore keeps one hash per user (field experiment id, value variation
// id) under a configurable key prefix. An optional TTL bounds how long a
// dormant user's assignments are retained; every save refreshes it.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "profile:" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// WithTTL expires a user's assignments after the given duration of
// inactivity. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a redis-backed profile store over an existing
// client. The caller owns the client's lifecycle.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "profile:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(userID string) string {
	return s.keyPrefix + userID
}

// Lookup returns the saved variation id for the user/experiment pair, or
// "" when none was saved.
func (s *RedisStore) Lookup(ctx context.Context, userID, experimentID string) (string, error) {
	variationID, err := s.client.HGet(ctx, s.key(userID), experimentID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Join(ErrLookupFailed, err)
	}
	return variationID, nil
}

// Save records the variation id for the user/experiment pair and refreshes
// the user's TTL when one is configured.
func (s *RedisStore) Save(ctx context.Context, userID, experimentID, variationID string) error {
	key := s.key(userID)
	if err := s.client.HSet(ctx, key, experimentID, variationID).Err(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return errors.Join(ErrSaveFailed, err)
		}
	}
	return nil
}
