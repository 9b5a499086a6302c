// Package guard serializes mutations per key inside one process.
//
// It is the first of two layers: the store still takes a row lock (Postgres)
// or validates versions at commit (memory), so several processes sharing a
// database stay correct. The in-process layer keeps same-group requests from
// piling up on the database lock and from burning the conflict retry budget.
package guard

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker hands out exclusive access per key.
type Locker interface {
	// Lock blocks until the caller holds key or ctx is done.
	// The returned func releases the key and must be called exactly once.
	Lock(ctx context.Context, key int64) (func(), error)
}

// KeyedMutex is a Locker backed by one weighted semaphore per busy key.
// Entries exist only while someone holds or waits for the key, so the map
// stays as small as the number of groups being mutated right now.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[int64]*entry)}
}

// Lock implements Locker. Different keys never block each other.
func (k *KeyedMutex) Lock(ctx context.Context, key int64) (func(), error) {
	e := k.acquireEntry(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.releaseEntry(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.releaseEntry(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *KeyedMutex) acquireEntry(key int64) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) releaseEntry(key int64, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Nop is a Locker that never blocks. Stores that serialize on their own
// (a row lock held for the whole transaction) can run without the
// in-process layer.
type Nop struct{}

// Lock implements Locker.
func (Nop) Lock(ctx context.Context, _ int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}
