package service

import (
	"context"
	"sync"
	"time"
)

// LockRegistry hands out one exclusive lock per key. Holders of different
// keys never wait on each other. Entries are created on first use and
// removed once no holder or waiter references them.
type LockRegistry struct {
	mu          sync.Mutex
	entries     map[string]*lockEntry
	waitTimeout time.Duration
}

type lockEntry struct {
	slot chan struct{} // holds a token while the lock is taken
	refs int           // holder plus waiters
}

// NewLockRegistry creates a registry. A positive waitTimeout bounds how long
// Acquire waits before giving up with ErrLockTimeout.
func NewLockRegistry(waitTimeout time.Duration) *LockRegistry {
	return &LockRegistry{
		entries:     make(map[string]*lockEntry),
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until the caller holds the lock for key. The returned
// release func must be called exactly once, normally via defer; extra calls
// are ignored.
func (r *LockRegistry) Acquire(ctx context.Context, key string) (func(), error) {
	entry := r.ref(key)

	var timeout <-chan time.Time
	if r.waitTimeout > 0 {
		timer := time.NewTimer(r.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		r.unref(key, entry)
		return nil, ctx.Err()
	case <-timeout:
		r.unref(key, entry)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-entry.slot
			r.unref(key, entry)
		})
	}
	return release, nil
}

func (r *LockRegistry) ref(key string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		r.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (r *LockRegistry) unref(key string, entry *lockEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.refs--
	if entry.refs == 0 && r.entries[key] == entry {
		delete(r.entries, key)
	}
}

// Len returns the number of keys currently held or waited on
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
