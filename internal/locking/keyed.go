// Package locking provides in-process per-key mutual exclusion. The engine
// and the graduation manager share one KeyedMutex per deployment so that a
// trade and a graduation on the same agent never interleave.
package locking

import "sync"

// KeyedMutex hands out one mutex per key so operations on the same key
// serialize while different keys proceed in parallel. Entries are never
// evicted; the per-key footprint is one mutex.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the key's mutex and returns the unlock function.
func (k *KeyedMutex) Acquire(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
