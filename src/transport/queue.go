package transport

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
// RedisQueue carries confirmation events on a Redis list (RPUSH producer side,
// BLPOP consumer side). One JSON event per element, at-least-once: an event
// popped by a consumer that crashes before processing is lost to that
// consumer but agents re-send unacknowledged confirmations.
// -----------------------------------------------------------------------------

type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	Logger      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisQueue(cfg *models.MConfig, log *logger.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPass,
		DB:       cfg.Store.RedisDB,
	})

	q := &RedisQueue{
		client:      client,
		key:         cfg.Queue.Key,
		pollTimeout: time.Duration(cfg.Queue.PollTimeoutMs) * time.Millisecond,
		Logger:      log,
	}

	err := helpers.RetryWithBackoff(log, "redis queue connect", 3, time.Second, func() error {
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		return nil, err
	}

	log.Info("Confirmation queue on redis list '%s'", q.key)
	return q, nil
}

// -----------------------------------------------------------------------------

func (q *RedisQueue) Receive(ctx context.Context) ([]byte, error) {
	// BLPOP blocks at most pollTimeout so the caller can re-check its context.
	res, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, helpers.ErrQueueEmpty
	}
	if err != nil {
		return nil, helpers.NewBackendUnavailable(err)
	}

	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, helpers.NewBackendUnavailable(errors.New("unexpected BLPOP reply shape"))
	}
	return []byte(res[1]), nil
}

// -----------------------------------------------------------------------------

func (q *RedisQueue) Publish(ctx context.Context, payload []byte) error {
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return helpers.NewBackendUnavailable(err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// -----------------------------------------------------------------------------
// MemoryQueue is the in-process IQueue backend (buffered channel), used for
// single-binary deployments and tests.
// -----------------------------------------------------------------------------

type MemoryQueue struct {
	ch          chan []byte
	pollTimeout time.Duration
}

// -----------------------------------------------------------------------------

func NewMemoryQueue(bufferSize int, pollTimeout time.Duration) *MemoryQueue {
	return &MemoryQueue{
		ch:          make(chan []byte, bufferSize),
		pollTimeout: pollTimeout,
	}
}

// -----------------------------------------------------------------------------

func (q *MemoryQueue) Receive(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(q.pollTimeout)
	defer timer.Stop()

	select {
	case payload, ok := <-q.ch:
		if !ok {
			return nil, helpers.ErrQueueEmpty
		}
		return payload, nil
	case <-timer.C:
		return nil, helpers.ErrQueueEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (q *MemoryQueue) Publish(ctx context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (q *MemoryQueue) Close() error {
	close(q.ch)
	return nil
}
