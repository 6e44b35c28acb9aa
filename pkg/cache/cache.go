// Package cache provides the memoization store shared across pipeline
// workers. A store lives for exactly one scan run: it is created empty at
// pipeline start and discarded with the run; nothing is persisted.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/aclscan/aclscan/internal/build"
)

var (
	cacheHitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "cache_hit_count",
		Help:      "The total number of GetOrCompute calls answered from the store.",
	}, []string{"store"})

	cacheMissCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "cache_miss_count",
		Help:      "The total number of GetOrCompute calls that had to run the compute function.",
	}, []string{"store"})
)

type config struct {
	serialize bool
}

// Option configures a Store at construction time.
type Option func(*config)

// WithSingleflight serializes the compute function per key: concurrent
// callers asking for the same missing key share one computation instead of
// racing duplicates. Without it, duplicate computations may run but only
// the first completed result is stored (harmless duplicate I/O in exchange
// for no per-key coordination).
func WithSingleflight() Option {
	return func(c *config) {
		c.serialize = true
	}
}

// Store is a thread-safe, insert-only memoization map. Reads never take a
// lock. Writes are idempotent: once a key holds a value, later computations
// for it are discarded in favor of the stored one, so every caller observes
// a single canonical value per key for the lifetime of the run.
type Store[K comparable, V any] struct {
	name    string
	entries sync.Map
	flight  *singleflight.Group
}

// NewStore returns an empty store. The name labels the store's metrics and
// log entries; it is not part of the key space.
func NewStore[K comparable, V any](name string, opts ...Option) *Store[K, V] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store[K, V]{name: name}
	if cfg.serialize {
		s.flight = &singleflight.Group{}
	}
	return s
}

// GetOrCompute returns the value stored under key, computing and storing it
// first if absent. A compute error is returned to the caller and nothing is
// stored, so a later call retries.
func (s *Store[K, V]) GetOrCompute(ctx context.Context, key K, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := s.entries.Load(key); ok {
		cacheHitCounter.WithLabelValues(s.name).Inc()
		return v.(V), nil
	}
	cacheMissCounter.WithLabelValues(s.name).Inc()

	if s.flight == nil {
		v, err := compute(ctx)
		if err != nil {
			var zero V
			return zero, err
		}
		actual, _ := s.entries.LoadOrStore(key, v)
		return actual.(V), nil
	}

	// Group.Do keys on strings; %v is stable for the comparable key types
	// used by the cache set (strings throughout).
	v, err, _ := s.flight.Do(fmt.Sprintf("%v", key), func() (any, error) {
		if v, ok := s.entries.Load(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		actual, _ := s.entries.LoadOrStore(key, v)
		return actual, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Get returns the value stored under key without computing anything.
func (s *Store[K, V]) Get(key K) (V, bool) {
	v, ok := s.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Seed stores value under key if the key is absent and reports whether the
// write happened. The discovery stage uses it to warm stores before the
// concurrent stages start; seeding follows the same first-write-wins rule
// as GetOrCompute.
func (s *Store[K, V]) Seed(key K, value V) bool {
	_, loaded := s.entries.LoadOrStore(key, value)
	return !loaded
}

// Len reports the number of stored keys.
func (s *Store[K, V]) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Keys returns the stored keys in no particular order.
func (s *Store[K, V]) Keys() []K {
	var keys []K
	s.entries.Range(func(k, _ any) bool {
		keys = append(keys, k.(K))
		return true
	})
	return keys
}
