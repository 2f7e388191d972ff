package kvcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Cache is a bounded in-memory key-value cache with sliding expiration.
//
// The map is the single source of truth for a key's value and expiry. The
// expiry queue is only a hint for finding eviction and reclamation candidates:
// a hit refresh rewrites the expiry in the map without requeuing, so queue
// records go stale and are reconciled lazily when popped.
//
// All operations are safe for concurrent use. The mutating operations hold the
// lock exclusively; Get also runs exclusively because the hit refresh and lazy
// expiry rewrite shared state.
type Cache[K comparable, V any] struct {
	cfg   config[K, V]
	lock  *RWLock
	data  map[K]*entry[V]
	queue expiryQueue[K]
	stats Stats
	group singleflight.Group
}

// New creates a Cache with the given options. It fails with ErrInvalidConfig
// for a non-positive extension or a negative maxsize.
func New[K comparable, V any](opts ...Option[K, V]) (*Cache[K, V], error) {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.extension <= 0 {
		return nil, fmt.Errorf("%w: extension must be positive, got %s", ErrInvalidConfig, cfg.extension)
	}
	if cfg.maxsize < 0 {
		return nil, fmt.Errorf("%w: maxsize must be >= 0, got %d", ErrInvalidConfig, cfg.maxsize)
	}
	if cfg.name == "" {
		cfg.name = "cache.unnamed." + uuid.NewString()
		cfg.logger.Warn().
			Str("cache", cfg.name).
			Msg("cache created without a name; pick a meaningful one to ease debugging")
	}

	return &Cache[K, V]{
		cfg:  cfg,
		lock: NewRWLock(),
		data: make(map[K]*entry[V]),
	}, nil
}

// Set stores every key in entries with no expiry.
func (c *Cache[K, V]) Set(entries map[K]V) error {
	return c.SetWithTTL(entries, 0)
}

// SetWithTTL stores every key in entries with the given time-to-live. A ttl
// that is non-positive or at least MaxTTL means the entries never expire.
//
// A batch larger than maxsize fails fast with ErrCapacityExceeded regardless
// of free capacity, mutating nothing. Keys already present are updated in
// place without touching the expiry queue; their stale queue records are
// reconciled on a later pop. New keys at capacity displace the live entry
// with the smallest canonical expiry.
//
// If the eviction loop runs out of candidates mid-batch, every mutation made
// by the call is rolled back and ErrCapacityExceeded is returned. If the
// eviction guard trips for a key (the key would expire before its victim),
// only that key is abandoned; the rest of the batch proceeds and the call
// returns ErrInvariantViolation.
func (c *Cache[K, V]) SetWithTTL(entries map[K]V, ttl time.Duration) error {
	if c.cfg.maxsize > 0 && len(entries) > c.cfg.maxsize {
		c.cfg.logger.Error().
			Str("cache", c.cfg.name).
			Int("batch", len(entries)).
			Int("maxsize", c.cfg.maxsize).
			Msg("cannot insert more entries than maxsize in one call")
		return fmt.Errorf("%w: batch of %d entries exceeds maxsize %d",
			ErrCapacityExceeded, len(entries), c.cfg.maxsize)
	}

	if err := c.lock.AcquireWrite(c.cfg.lockTimeout); err != nil {
		return err
	}
	defer c.lock.Release()

	expiresAt := neverExpires
	if ttl > 0 && ttl < MaxTTL {
		expiresAt = c.cfg.clock.Now().Add(ttl)
	}

	var journal []undo[K, V]
	var violation error
	for key, value := range entries {
		if ent, ok := c.data[key]; ok {
			journal = append(journal, undo[K, V]{key: key, prev: *ent, existed: true})
			ent.value = value
			ent.expiresAt = expiresAt
			continue
		}

		if c.cfg.maxsize > 0 && len(c.data) >= c.cfg.maxsize {
			if err := c.evictOne(expiresAt, &journal); err != nil {
				if errors.Is(err, ErrInvariantViolation) {
					violation = fmt.Errorf("%w: key %v abandoned", ErrInvariantViolation, key)
					continue
				}
				c.rollback(journal)
				return err
			}
		}

		c.data[key] = &entry[V]{value: value, expiresAt: expiresAt}
		c.queue.push(key, expiresAt)
		journal = append(journal, undo[K, V]{key: key})
	}
	return violation
}

// undo records one index mutation so a failed batch can be unwound. Queue
// records pushed for unwound keys are left behind as orphans; reconciliation
// discards them on a later pop.
type undo[K comparable, V any] struct {
	key     K
	prev    entry[V]
	existed bool
	requeue bool // the previous entry's queue record was consumed
}

func (c *Cache[K, V]) rollback(journal []undo[K, V]) {
	for i := len(journal) - 1; i >= 0; i-- {
		u := journal[i]
		if !u.existed {
			delete(c.data, u.key)
			continue
		}
		prev := u.prev
		c.data[u.key] = &prev
		if u.requeue {
			c.queue.push(u.key, prev.expiresAt)
		}
	}
}

// evictOne frees one index slot by reconciling the queue minimum against the
// index until a live, canonical victim is found. Orphaned records (key already
// deleted) are discarded; stale records are requeued with their canonical
// expiry. The guard rejects displacing a victim that outlives the incoming
// entry: a correctly ordered cache can never need that.
func (c *Cache[K, V]) evictOne(expiresAt time.Time, journal *[]undo[K, V]) error {
	for {
		rec, ok := c.queue.pop()
		if !ok {
			c.cfg.logger.Error().
				Str("cache", c.cfg.name).
				Msg("expiry queue exhausted without finding an eviction victim")
			return fmt.Errorf("%w: no eviction victim found", ErrCapacityExceeded)
		}

		ent, live := c.data[rec.key]
		if !live {
			continue
		}
		if ent.expiresAt.After(rec.expiresAt) {
			// Superseded by a hit refresh; requeue the canonical expiry and
			// keep looking for the true minimum.
			c.queue.push(rec.key, ent.expiresAt)
			continue
		}
		if expiresAt.Before(ent.expiresAt) {
			// Compare against the canonical expiry, not the popped hint: an
			// in-place update may have lowered the victim's expiry below it.
			c.queue.push(rec.key, rec.expiresAt)
			c.cfg.logger.Error().
				Str("cache", c.cfg.name).
				Time("new", expiresAt).
				Time("victim", ent.expiresAt).
				Msg("new entry would expire before the entry displaced for it")
			return ErrInvariantViolation
		}

		*journal = append(*journal, undo[K, V]{key: rec.key, prev: *ent, existed: true, requeue: true})
		delete(c.data, rec.key)
		c.stats.evict()
		c.cfg.logger.Debug().
			Str("cache", c.cfg.name).
			Interface("key", rec.key).
			Msg("evicted to make room")
		if c.cfg.onEvict != nil {
			c.cfg.onEvict(rec.key, ent.value)
		}
		return nil
	}
}

// Get returns the value for key. An entry whose expiry has passed is deleted
// and reported as a miss. On a hit, a finite expiry slides forward to the
// smaller of now+extension and expiry+extension, so repeated hits never push
// it more than one extension past the most recent access; never-expiring
// entries are left untouched.
//
// Get rewrites shared state, so after the initial shared acquire it promotes
// to the exclusive hold. Promotion is not atomic: the entry is looked up again
// afterward, since another writer may have intervened.
func (c *Cache[K, V]) Get(key K) (V, bool, error) {
	var zero V

	if err := c.lock.AcquireRead(c.cfg.lockTimeout); err != nil {
		return zero, false, err
	}
	if _, ok := c.data[key]; !ok {
		c.lock.Release()
		c.miss(key)
		return zero, false, nil
	}
	if err := c.lock.Promote(c.cfg.lockTimeout); err != nil {
		// The read hold was surrendered inside Promote; nothing to release.
		return zero, false, err
	}
	defer c.lock.Release()

	ent, ok := c.data[key]
	if !ok {
		c.miss(key)
		return zero, false, nil
	}

	now := c.cfg.clock.Now()
	if ent.expired(now) {
		delete(c.data, key)
		c.stats.expire()
		c.cfg.logger.Debug().
			Str("cache", c.cfg.name).
			Interface("key", key).
			Msg("key hit but expired")
		c.miss(key)
		return zero, false, nil
	}

	if !ent.forever() {
		ent.expiresAt = c.refreshedExpiry(ent.expiresAt, now)
	}
	c.stats.hit()
	if c.cfg.onHit != nil {
		c.cfg.onHit(key, ent.value)
	}
	return ent.value, true, nil
}

// refreshedExpiry slides a finite expiry forward on a hit. Because a live
// entry's expiry is at or after now, the minimum reduces to now+extension in
// practice; the cap exists so drift can never exceed one extension.
func (c *Cache[K, V]) refreshedExpiry(current, now time.Time) time.Time {
	refreshed := now.Add(c.cfg.extension)
	extended := current.Add(c.cfg.extension)
	if extended.Before(refreshed) {
		return extended
	}
	return refreshed
}

func (c *Cache[K, V]) miss(key K) {
	c.stats.miss()
	if c.cfg.onMiss != nil {
		c.cfg.onMiss(key)
	}
}

// GetOrLoad returns the cached value for key, loading and caching it on a
// miss via the configured loader. Concurrent loads for the same key are
// coalesced into a single call. Loaded values are stored with the TTL set by
// WithTTL. Without a loader it behaves like Get, discarding the found flag.
func (c *Cache[K, V]) GetOrLoad(key K) (V, error) {
	var zero V

	v, ok, err := c.Get(key)
	if err != nil {
		return zero, err
	}
	if ok || c.cfg.loader == nil {
		return v, nil
	}

	res, err, _ := c.group.Do(fmt.Sprintf("%v", key), func() (any, error) {
		loaded, err := c.cfg.loader(key)
		if err != nil {
			return nil, err
		}
		if err := c.SetWithTTL(map[K]V{key: loaded}, c.cfg.ttl); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(V), nil
}

// PopExpired removes and returns entries whose canonical expiry is at or
// before now. n == 0 drains every currently expired entry; n > 0 caps how
// many are returned. Popped records are reconciled like eviction candidates:
// orphans are discarded, stale records requeued with their canonical expiry.
// The sweep stops at the first unexpired minimum, which the queue ordering
// guarantees no later record can precede; that record is pushed back.
//
// This is the only bulk reclamation path. Entries that expire and are never
// read again stay in memory until a sweep, a capacity eviction, or Clear
// touches them.
func (c *Cache[K, V]) PopExpired(n int) (map[K]V, error) {
	if n < 0 {
		n = 0
	}
	if err := c.lock.AcquireWrite(c.cfg.lockTimeout); err != nil {
		return nil, err
	}
	defer c.lock.Release()

	out := make(map[K]V)
	now := c.cfg.clock.Now()
	for n == 0 || len(out) < n {
		rec, ok := c.queue.pop()
		if !ok {
			break
		}
		ent, live := c.data[rec.key]
		if !live {
			continue
		}
		if ent.expiresAt.After(rec.expiresAt) {
			c.queue.push(rec.key, ent.expiresAt)
			continue
		}
		if ent.expiresAt.After(now) {
			// Push the canonical expiry back, not the popped hint: an
			// in-place update may have lowered it, and an inflated hint
			// would hide the entry behind later records on the next sweep.
			c.queue.push(rec.key, ent.expiresAt)
			break
		}
		out[rec.key] = ent.value
		delete(c.data, rec.key)
		c.stats.expire()
	}
	return out, nil
}

// Has reports whether key is present and not expired, without refreshing its
// expiry or deleting it. It runs under a shared hold.
func (c *Cache[K, V]) Has(key K) bool {
	var ok bool
	_ = c.lock.WithRead(0, func() error {
		if ent, live := c.data[key]; live {
			ok = !ent.expired(c.cfg.clock.Now())
		}
		return nil
	})
	return ok
}

// Len returns the number of live keys in the index, read under a shared hold.
// It may count entries that have expired but not yet been reclaimed.
func (c *Cache[K, V]) Len() int {
	var n int
	_ = c.lock.WithRead(0, func() error {
		n = len(c.data)
		return nil
	})
	return n
}

// Clear drops every entry and every queue record under one exclusive hold.
func (c *Cache[K, V]) Clear() error {
	return c.lock.WithWrite(c.cfg.lockTimeout, func() error {
		c.data = make(map[K]*entry[V])
		c.queue.records = nil
		return nil
	})
}

// Name returns the cache's diagnostic name.
func (c *Cache[K, V]) Name() string {
	return c.cfg.name
}

// Stats returns a snapshot of cache statistics.
func (c *Cache[K, V]) Stats() Snapshot {
	return c.stats.Snapshot()
}
