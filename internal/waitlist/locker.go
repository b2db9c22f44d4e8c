package waitlist

import "sync"

// Locker serialises mutations per event within one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the caller holds the lock for eventID and returns the
// function that releases it.
func (l *Locker) Lock(eventID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[eventID]
	if !ok {
		lk = &keyedLock{}
		l.locks[eventID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, eventID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
