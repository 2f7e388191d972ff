package kvcache

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultExtension is the sliding window added to a finite entry's expiry
	// when it is hit.
	DefaultExtension = 5 * time.Minute

	// MaxTTL is the horizon at or beyond which a TTL is treated as
	// "never expires".
	MaxTTL = 100 * 365 * 24 * time.Hour
)

type config[K comparable, V any] struct {
	name        string
	maxsize     int
	extension   time.Duration
	ttl         time.Duration
	lockTimeout time.Duration
	clock       Clock
	logger      zerolog.Logger
	loader      func(K) (V, error)
	onHit       func(K, V)
	onMiss      func(K)
	onEvict     func(K, V)
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		extension: DefaultExtension,
		clock:     realClock{},
		logger:    zerolog.Nop(),
	}
}

// Option configures a Cache.
type Option[K comparable, V any] func(*config[K, V])

// WithName sets the cache's diagnostic name, used in log output. Caches
// constructed without a name get a generated one and a logged warning.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(c *config[K, V]) {
		c.name = name
	}
}

// WithMaxSize bounds the number of live keys. Zero, the default, means
// unbounded.
func WithMaxSize[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		c.maxsize = n
	}
}

// WithExtension sets the sliding-expiry window added to a finite entry on a
// hit. New fails with ErrInvalidConfig if the extension is not positive.
func WithExtension[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.extension = d
	}
}

// WithTTL sets the time-to-live applied to entries populated by GetOrLoad.
// Zero or anything at or beyond MaxTTL means those entries never expire.
func WithTTL[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.ttl = d
	}
}

// WithLockTimeout bounds lock acquisition for Set, SetWithTTL, Get,
// PopExpired, and Clear. An operation that cannot acquire the lock in time
// fails with ErrLockTimeout without mutating state. Zero, the default, waits
// indefinitely.
func WithLockTimeout[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.lockTimeout = d
	}
}

// WithClock sets a custom clock for time operations.
// Useful for testing expiry behavior.
func WithClock[K comparable, V any](clk Clock) Option[K, V] {
	return func(c *config[K, V]) {
		c.clock = clk
	}
}

// WithLogger sets the sink for diagnostic output. Logging is disabled by
// default.
func WithLogger[K comparable, V any](logger zerolog.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.logger = logger
	}
}

// WithLoader sets a function used by GetOrLoad to fetch missing values.
func WithLoader[K comparable, V any](fn func(K) (V, error)) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = fn
	}
}

// OnHit sets a callback invoked on cache hits.
func OnHit[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onHit = fn
	}
}

// OnMiss sets a callback invoked on cache misses.
func OnMiss[K comparable, V any](fn func(K)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onMiss = fn
	}
}

// OnEvict sets a callback invoked when an entry is evicted to make room.
func OnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onEvict = fn
	}
}
