// Package services implements the business logic of the delivery backend.
// This file provides the per-key in-flight lock that makes the ledger's
// check-then-deliver-then-record sequence atomic with respect to concurrent
// triggers for the same receipt or claim key. Without it, two interleaved
// operations could both observe "not yet delivered" before either records
// its result.
package services

import "sync"

// keyLock serializes operations per string key. Entries are reference
// counted and removed once the last holder releases, so the map stays
// bounded by the number of in-flight operations.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// newKeyLock returns an empty keyLock.
func newKeyLock() *keyLock {
	return &keyLock{locks: map[string]*keyLockEntry{}}
}

// acquire blocks until the key's lock is held and returns the release
// function. Release exactly once.
func (k *keyLock) acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyLockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
