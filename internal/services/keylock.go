// Package services – per-order serialization.
//
// KeyedLocks guarantees at most one in-flight reconciliation decision per
// order: the background sweep and a user-triggered check on the same order
// must never interleave their store mutations.
package services

import "sync"

// KeyedLocks is a set of non-blocking mutexes keyed by string (order id).
// A lock entry exists only while held, so memory stays proportional to the
// number of orders being reconciled right now.
type KeyedLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedLocks returns an empty lock set.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{held: make(map[string]struct{})}
}

// TryLock attempts to acquire the lock for key without blocking. It reports
// whether the lock was acquired; callers that fail to acquire treat the order
// as already being reconciled.
func (k *KeyedLocks) TryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, taken := k.held[key]; taken {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

// Unlock releases the lock for key. Unlocking a key that is not held is a
// no-op rather than a panic; terminal cleanup paths may race benignly.
func (k *KeyedLocks) Unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}
