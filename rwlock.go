package kvcache

import (
	"sync"
	"time"
)

// RWLock is a reader/writer lock with read-to-write promotion, write-to-read
// demotion, and optional timeouts on acquisition. Any number of readers may
// hold it simultaneously, XOR one writer. Once a writer is waiting, new read
// acquisitions block until the writer has acquired and released, so a steady
// stream of readers cannot starve a writer.
//
// Waiters block on a gate channel that is closed to broadcast a wake, then
// replaced. Every wake re-enters the predicate loop: a wake is a hint that the
// state may have changed, never proof that the lock is available.
type RWLock struct {
	mu             sync.Mutex
	state          int // -1 one writer, 0 unlocked, n > 0 that many readers
	writersWaiting int
	readerGate     chan struct{}
	writerGate     chan struct{}
}

// NewRWLock returns an unlocked RWLock.
func NewRWLock() *RWLock {
	return &RWLock{
		readerGate: make(chan struct{}),
		writerGate: make(chan struct{}),
	}
}

// AcquireRead takes a shared hold. It blocks while a writer holds the lock or
// any writer is waiting for it. A non-positive timeout waits indefinitely;
// otherwise an elapsed timeout fails with ErrLockTimeout and no hold is taken.
func (l *RWLock) AcquireRead(timeout time.Duration) error {
	deadline := deadlineFor(timeout)
	l.mu.Lock()
	for l.state < 0 || l.writersWaiting > 0 {
		gate := l.readerGate
		l.mu.Unlock()
		if err := awaitGate(gate, deadline); err != nil {
			return err
		}
		l.mu.Lock()
	}
	l.state++
	l.mu.Unlock()
	return nil
}

// AcquireWrite takes the exclusive hold. It blocks until no readers and no
// writer hold the lock. A non-positive timeout waits indefinitely; otherwise
// an elapsed timeout fails with ErrLockTimeout and no hold is taken.
func (l *RWLock) AcquireWrite(timeout time.Duration) error {
	deadline := deadlineFor(timeout)
	l.mu.Lock()
	for l.state != 0 {
		l.writersWaiting++
		gate := l.writerGate
		l.mu.Unlock()
		err := awaitGate(gate, deadline)
		l.mu.Lock()
		l.writersWaiting--
		if err != nil {
			l.wakeAbandonedReaders()
			l.mu.Unlock()
			return err
		}
	}
	l.state = -1
	l.mu.Unlock()
	return nil
}

// Promote upgrades the caller's read hold to the exclusive hold. The read hold
// is surrendered first, then the caller waits like any other writer; between
// the two, another writer may acquire and mutate. Promotion is therefore not
// atomic and callers must revalidate whatever they observed under the read
// hold. On timeout the read hold is already gone and the caller must not
// Release.
func (l *RWLock) Promote(timeout time.Duration) error {
	deadline := deadlineFor(timeout)
	l.mu.Lock()
	if l.state > 0 {
		l.state--
	}
	for l.state != 0 {
		l.writersWaiting++
		gate := l.writerGate
		l.mu.Unlock()
		err := awaitGate(gate, deadline)
		l.mu.Lock()
		l.writersWaiting--
		if err != nil {
			l.wakeAbandonedReaders()
			l.mu.Unlock()
			return err
		}
	}
	l.state = -1
	l.mu.Unlock()
	return nil
}

// Demote unconditionally converts the caller's exclusive hold into a single
// read hold and wakes waiting readers. It does not verify that the caller
// actually held the write lock; that is the caller's responsibility. Readers
// woken behind a still-waiting writer re-check the predicate and sleep again.
func (l *RWLock) Demote() {
	l.mu.Lock()
	l.state = 1
	close(l.readerGate)
	l.readerGate = make(chan struct{})
	l.mu.Unlock()
}

// Release drops the caller's hold, shared or exclusive. When the lock becomes
// free, waiting writers are woken ahead of waiting readers.
func (l *RWLock) Release() {
	l.mu.Lock()
	if l.state < 0 {
		l.state = 0
	} else if l.state > 0 {
		l.state--
	}
	if l.state == 0 {
		if l.writersWaiting > 0 {
			close(l.writerGate)
			l.writerGate = make(chan struct{})
		} else {
			close(l.readerGate)
			l.readerGate = make(chan struct{})
		}
	}
	l.mu.Unlock()
}

// WithRead runs fn under a shared hold, releasing on every exit path
// including a panic in fn.
func (l *RWLock) WithRead(timeout time.Duration, fn func() error) error {
	if err := l.AcquireRead(timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// WithWrite runs fn under the exclusive hold, releasing on every exit path
// including a panic in fn.
func (l *RWLock) WithWrite(timeout time.Duration, fn func() error) error {
	if err := l.AcquireWrite(timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// wakeAbandonedReaders is called with mu held when a waiting writer gives up.
// If it was the last one, readers gated behind writersWaiting would otherwise
// sleep until the next release.
func (l *RWLock) wakeAbandonedReaders() {
	if l.writersWaiting == 0 && l.state >= 0 {
		close(l.readerGate)
		l.readerGate = make(chan struct{})
	}
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// awaitGate blocks until gate is closed or the deadline passes. A zero
// deadline waits forever.
func awaitGate(gate <-chan struct{}, deadline time.Time) error {
	if deadline.IsZero() {
		<-gate
		return nil
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return ErrLockTimeout
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-gate:
		return nil
	case <-t.C:
		return ErrLockTimeout
	}
}
