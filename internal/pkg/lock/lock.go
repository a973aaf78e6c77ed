// Package lock provides per-key locking for concurrent session updates.
// It only serializes work inside one process; cross-process correctness
// comes from row locks and unique constraints in the database.
package lock

import (
	"context"
	"sync"
)

// keyMutex is a one-slot semaphore so acquisition can be abandoned
// when a context is cancelled.
type keyMutex struct {
	ch       chan struct{}
	refCount int
}

// KeyLock provides per-key locking. Entries are dropped once no goroutine
// holds or waits for them, so the map does not grow with every session ever seen.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// acquireRef retrieves or creates the mutex for key and registers interest in it.
func (kl *KeyLock) acquireRef(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

// releaseRef drops interest in key and removes the entry when unused.
func (kl *KeyLock) releaseRef(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refCount--
	if m.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Unlock releases the lock for a key. Unlocking a key that is not
// locked is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.ch:
		kl.releaseRef(key, m)
	default:
	}
}

// LockContext acquires the lock for a key or gives up when ctx is done.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	m := kl.acquireRef(key)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.releaseRef(key, m)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}
