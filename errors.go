package kvcache

import "errors"

var (
	// ErrCapacityExceeded is returned when a single batch is larger than the
	// cache's maxsize, or when the eviction loop cannot find a victim.
	ErrCapacityExceeded = errors.New("kvcache: capacity exceeded")

	// ErrInvariantViolation is returned when a new entry would expire before
	// the entry being displaced to make room for it.
	ErrInvariantViolation = errors.New("kvcache: eviction invariant violated")

	// ErrLockTimeout is returned when lock acquisition does not succeed within
	// the configured bound. State is not mutated when it is returned.
	ErrLockTimeout = errors.New("kvcache: lock acquisition timed out")

	// ErrInvalidConfig is returned by New for unusable construction parameters.
	ErrInvalidConfig = errors.New("kvcache: invalid configuration")
)
