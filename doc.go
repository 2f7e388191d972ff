// Package kvcache provides a bounded in-memory key-value cache with sliding
// (hit-extended) expiration, lazy heap-based reclamation, and a reader/writer
// lock supporting promotion and demotion.
//
// # Overview
//
// Every entry carries an absolute expiry: either a concrete instant or a fixed
// never-expires horizon. A hit on a finite entry slides its expiry forward to
// at most one extension window past the access, so an entry that is not hit
// often enough can expire earlier than its original TTL. A min-heap of
// (expiry, key) records orders eviction and reclamation candidates; the heap
// is allowed to lag the map and every popped record is reconciled against the
// map before being acted on.
//
// # Basic Usage
//
// Create a cache and perform bulk operations:
//
//	cache, err := kvcache.New[string, int](
//		kvcache.WithName[string, int]("sessions"),
//		kvcache.WithMaxSize[string, int](1000),
//		kvcache.WithExtension[string, int](5*time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//
//	// Store values with a TTL
//	cache.SetWithTTL(map[string]int{"a": 1, "b": 2}, time.Minute)
//
//	// Store values that never expire
//	cache.Set(map[string]int{"pinned": 3})
//
//	// Get refreshes the entry's expiry on a hit
//	if v, ok, _ := cache.Get("a"); ok {
//		fmt.Println(v)
//	}
//
// # Capacity and Eviction
//
// With a maxsize set, inserting a new key into a full cache displaces the live
// entry with the smallest canonical expiry. A single batch larger than maxsize
// always fails with ErrCapacityExceeded, even into an empty cache.
//
// # Reclamation
//
// Expired entries are deleted lazily when read. Entries that are never read
// again stay in memory until swept:
//
//	reclaimed, _ := cache.PopExpired(0) // drain everything currently expired
//	reclaimed, _ = cache.PopExpired(10) // at most ten
//
// # Lock Timeouts
//
// By default operations wait indefinitely for the cache lock. With
// WithLockTimeout, an operation that cannot acquire the lock in time fails
// with ErrLockTimeout instead of blocking:
//
//	cache, _ := kvcache.New[string, int](
//		kvcache.WithLockTimeout[string, int](100 * time.Millisecond),
//	)
//
// # Automatic Loading
//
// Use a loader to fetch missing values. Concurrent loads for the same key are
// coalesced:
//
//	cache, _ := kvcache.New[string, *User](
//		kvcache.WithLoader(func(id string) (*User, error) {
//			return db.GetUser(id)
//		}),
//		kvcache.WithTTL[string, *User](time.Minute),
//	)
//	user, err := cache.GetOrLoad("user:123")
//
// # Testing
//
// Inject a custom clock to control time in tests:
//
//	type fakeClock struct{ now time.Time }
//	func (c *fakeClock) Now() time.Time { return c.now }
//
//	clock := &fakeClock{now: time.Now()}
//	cache, _ := kvcache.New[string, int](
//		kvcache.WithClock[string, int](clock),
//	)
//
//	cache.SetWithTTL(map[string]int{"key": 42}, time.Minute)
//	clock.now = clock.now.Add(2 * time.Minute)
//	_, ok, _ := cache.Get("key") // ok == false
//
// # Thread Safety
//
// All Cache methods are safe for concurrent use. The cache is guarded by
// RWLock, which is also exported on its own: it supports shared and exclusive
// holds with optional acquisition timeouts, read-to-write promotion, and
// write-to-read demotion, and it prioritizes waiting writers over new readers
// so writers cannot starve. Get promotes its shared hold before mutating,
// because the hit refresh and lazy expiry are writes in disguise.
package kvcache
