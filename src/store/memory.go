package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"fleet-observer/src/helpers"
)

// -----------------------------------------------------------------------------
// MemoryStore is the in-process IStore backend: a mutex-guarded map with
// per-key expiry. Used for single-binary deployments and as the test double.
// Expired entries are dropped lazily on access plus by a periodic janitor
// pass so abandoned keys do not accumulate.
// -----------------------------------------------------------------------------

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]entry

	// Now is the clock used for expiry checks. Overridable in tests.
	Now func() time.Time

	janitorStop  chan struct{}
	janitorStart sync.Once
	janitorOnce  sync.Once
}

// -----------------------------------------------------------------------------

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]entry),
		Now:         time.Now,
		janitorStop: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// StartJanitor launches the periodic expiry pass. Idempotent per store:
// repeated calls never launch a second janitor.
func (s *MemoryStore) StartJanitor(interval time.Duration) {
	s.janitorStart.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.dropExpired()
				case <-s.janitorStop:
					return
				}
			}
		}()
	})
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) dropExpired() {
	now := s.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.data, k)
		}
	}
}

// -----------------------------------------------------------------------------

// live returns the entry at key if present and unexpired. Caller holds at
// least a read lock.
func (s *MemoryStore) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && s.Now().After(e.expires) {
		return entry{}, false
	}
	return e, true
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok {
		return "", helpers.NewNotFound("key not found: %s", key)
	}
	return e.value, nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value}
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value, expires: s.Now().Add(ttl)}
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}

	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.Now().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.live(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, &helpers.FleetObserverError{Message: "value at " + key + " is not an integer", Cause: err}
		}
		current = parsed
	}

	current += n
	// Expiry is preserved across increments, like Redis INCRBY.
	e := s.data[key]
	e.value = strconv.FormatInt(current, 10)
	s.data[key] = e
	return current, nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, f float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current float64
	if e, ok := s.live(key); ok {
		parsed, err := strconv.ParseFloat(e.value, 64)
		if err != nil {
			return 0, &helpers.FleetObserverError{Message: "value at " + key + " is not a float", Cause: err}
		}
		current = parsed
	}

	current += f
	e := s.data[key]
	e.value = strconv.FormatFloat(current, 'f', -1, 64)
	s.data[key] = e
	return current, nil
}

// -----------------------------------------------------------------------------

// Keys supports the subset of glob the callers use: an exact key or a
// "prefix*" pattern.
func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		for k := range s.data {
			if strings.HasPrefix(k, prefix) {
				if _, ok := s.live(k); ok {
					result = append(result, k)
				}
			}
		}
		return result, nil
	}

	if _, ok := s.live(pattern); ok {
		result = append(result, pattern)
	}
	return result, nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemoryStore) Close() error {
	s.janitorOnce.Do(func() { close(s.janitorStop) })
	return nil
}
