package kvcache_test

import (
	"fmt"
	"time"

	"github.com/bjaus/kvcache"
)

// manualClock lets examples control time instead of sleeping.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func ExampleCache() {
	cache, err := kvcache.New[string, int](
		kvcache.WithName[string, int]("answers"),
		kvcache.WithMaxSize[string, int](100),
	)
	if err != nil {
		panic(err)
	}

	cache.SetWithTTL(map[string]int{"answer": 42}, 5*time.Minute)

	if v, ok, _ := cache.Get("answer"); ok {
		fmt.Println(v)
	}
	// Output: 42
}

func ExampleCache_eviction() {
	cache, _ := kvcache.New[string, int](
		kvcache.WithName[string, int]("bounded"),
		kvcache.WithMaxSize[string, int](2),
	)

	cache.SetWithTTL(map[string]int{"a": 1}, 10*time.Second)
	cache.SetWithTTL(map[string]int{"b": 2}, 20*time.Second)

	// the cache is full; c displaces the entry expiring soonest
	cache.SetWithTTL(map[string]int{"c": 3}, 15*time.Second)

	fmt.Println("has a:", cache.Has("a"))
	fmt.Println("has b:", cache.Has("b"))
	fmt.Println("has c:", cache.Has("c"))
	// Output:
	// has a: false
	// has b: true
	// has c: true
}

func ExampleCache_PopExpired() {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	cache, _ := kvcache.New[string, string](
		kvcache.WithName[string, string]("sessions"),
		kvcache.WithClock[string, string](clock),
	)

	cache.SetWithTTL(map[string]string{"short": "gone soon"}, 10*time.Second)
	cache.SetWithTTL(map[string]string{"long": "still here"}, time.Hour)

	clock.now = clock.now.Add(time.Minute)

	reclaimed, _ := cache.PopExpired(0)
	fmt.Println(reclaimed["short"])
	fmt.Println("remaining:", cache.Len())
	// Output:
	// gone soon
	// remaining: 1
}

func ExampleWithLoader() {
	cache, _ := kvcache.New[string, string](
		kvcache.WithName[string, string]("users"),
		kvcache.WithLoader[string, string](func(key string) (string, error) {
			// simulate loading from a database
			return "loaded:" + key, nil
		}),
	)

	// first call loads and caches
	v1, _ := cache.GetOrLoad("user-123")
	fmt.Println(v1)

	// second call is served from the cache
	v2, _ := cache.GetOrLoad("user-123")
	fmt.Println(v2)

	// Output:
	// loaded:user-123
	// loaded:user-123
}

func ExampleRWLock() {
	lock := kvcache.NewRWLock()
	balance := 100

	// inspect under a shared hold, then promote to mutate
	if err := lock.AcquireRead(0); err != nil {
		panic(err)
	}
	low := balance < 200
	if low {
		if err := lock.Promote(0); err != nil {
			panic(err)
		}
		// promotion is not atomic: revalidate before acting
		if balance < 200 {
			balance += 50
		}
		lock.Demote()
	}
	fmt.Println(balance)
	lock.Release()

	// Output: 150
}
