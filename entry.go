package kvcache

import "time"

// neverExpires is the expiry assigned to entries stored without a TTL. It is a
// fixed horizon 10000 years past the epoch rather than now+duration, so it
// orders after every finite expiry in the queue regardless of the clock.
var neverExpires = time.Unix(10000*365*24*60*60, 0)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) forever() bool {
	return e.expiresAt.Equal(neverExpires)
}

// expired reports whether the entry's expiry is at or before now.
// Never-expiring entries are never expired.
func (e *entry[V]) expired(now time.Time) bool {
	return !e.forever() && !e.expiresAt.After(now)
}
