package kvcache

import (
	"container/heap"
	"time"
)

// record is one hint in the expiry queue. The queue lags the index: a record's
// expiry may have been superseded by a hit refresh, or its key deleted
// entirely. Every pop must be reconciled against the index before acting.
type record[K comparable] struct {
	key       K
	expiresAt time.Time
}

// expiryQueue is a min-heap of (expiresAt, key) records used to find eviction
// and reclamation candidates without scanning the whole index.
type expiryQueue[K comparable] struct {
	records []record[K]
}

func (q *expiryQueue[K]) Len() int { return len(q.records) }

func (q *expiryQueue[K]) Less(i, j int) bool {
	return q.records[i].expiresAt.Before(q.records[j].expiresAt)
}

func (q *expiryQueue[K]) Swap(i, j int) {
	q.records[i], q.records[j] = q.records[j], q.records[i]
}

func (q *expiryQueue[K]) Push(x any) {
	q.records = append(q.records, x.(record[K]))
}

func (q *expiryQueue[K]) Pop() any {
	old := q.records
	n := len(old)
	rec := old[n-1]
	q.records = old[:n-1]
	return rec
}

func (q *expiryQueue[K]) push(key K, expiresAt time.Time) {
	heap.Push(q, record[K]{key: key, expiresAt: expiresAt})
}

// pop removes and returns the record with the smallest expiry.
func (q *expiryQueue[K]) pop() (record[K], bool) {
	if len(q.records) == 0 {
		return record[K]{}, false
	}
	return heap.Pop(q).(record[K]), true
}
