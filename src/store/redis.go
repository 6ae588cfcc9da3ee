package store

import (
	"context"
	"errors"
	"time"

	"fleet-observer/src/helpers"
	"fleet-observer/src/logger"
	"fleet-observer/src/models"

	"github.com/redis/go-redis/v9"
)

// -----------------------------------------------------------------------------
// RedisStore backs IStore with a Redis instance. Every call carries a bounded
// timeout so a slow store never stalls an ingestion or registry request.
// -----------------------------------------------------------------------------

type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisStore(cfg *models.MConfig, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPass,
		DB:       cfg.Store.RedisDB,
	})

	s := &RedisStore{
		client:    client,
		opTimeout: time.Duration(cfg.Store.OpTimeoutMs) * time.Millisecond,
		Logger:    log,
	}

	// Connection setup is retried; a dead store at boot is fatal upstream.
	err := helpers.RetryWithBackoff(log, "redis connect", 3, time.Second, func() error {
		return s.Ping(context.Background())
	})
	if err != nil {
		return nil, err
	}

	log.Info("Connected to redis at %s (db %d)", cfg.Store.RedisAddr, cfg.Store.RedisDB)
	return s, nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// -----------------------------------------------------------------------------

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", helpers.NewNotFound("key not found: %s", key)
	}
	if err != nil {
		return "", helpers.NewBackendUnavailable(err)
	}
	return val, nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return helpers.NewBackendUnavailable(err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return helpers.NewBackendUnavailable(err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, helpers.NewBackendUnavailable(err)
	}
	return ok, nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return helpers.NewBackendUnavailable(err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	val, err := s.client.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, helpers.NewBackendUnavailable(err)
	}
	return val, nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) IncrByFloat(ctx context.Context, key string, f float64) (float64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	val, err := s.client.IncrByFloat(ctx, key, f).Result()
	if err != nil {
		return 0, helpers.NewBackendUnavailable(err)
	}
	return val, nil
}

// -----------------------------------------------------------------------------

// Keys iterates with SCAN rather than KEYS to stay friendly to a store shared
// with thousands of producers.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var (
		cursor uint64
		result []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, helpers.NewBackendUnavailable(err)
		}
		result = append(result, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return helpers.NewBackendUnavailable(err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RedisStore) Close() error {
	return s.client.Close()
}
