// Package keylock provides per-key mutual exclusion. The auction apps share
// one KeyLock so every read-then-write sequence touching a given auction
// (bid validation against the highest bid, purse checks before a sale) is
// serialized, while unrelated auctions proceed in parallel.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock is a set of mutexes addressed by uuid. Entries are created on
// first use and removed once no holder or waiter remains.
type KeyLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the caller holds the mutex for id.
func (k *KeyLock) Lock(id uuid.UUID) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &entry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Len returns the number of live entries.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Unlock releases the mutex for id. It must pair with a prior Lock.
func (k *KeyLock) Unlock(id uuid.UUID) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		k.mu.Unlock()
		panic("keylock: unlock of unheld key " + id.String())
	}
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
