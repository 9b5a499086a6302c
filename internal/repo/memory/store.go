// Package memory is an in-process implementation of the repo interfaces.
//
// Transactions work on a private snapshot and are validated at commit:
// every group read with GetForUpdate or written with Update must still carry
// the version the transaction first saw, otherwise the commit fails with
// domain.ErrConflict and nothing is applied. Committing a transaction that
// locked a group bumps that group's version even when the group row itself
// was not changed, which makes the lock visible to concurrent transactions
// the same way a Postgres row lock would serialize them.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/repo"
)

// Store holds groups and participants in memory. The zero value is not
// usable; call New.
type Store struct {
	mu           sync.RWMutex
	groups       map[int64]domain.Group
	participants map[int64]domain.Participant

	groupSeq       atomic.Int64
	participantSeq atomic.Int64

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		groups:       make(map[int64]domain.Group),
		participants: make(map[int64]domain.Participant),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Repos returns repositories that read and write the live data directly,
// each call being its own transaction.
func (s *Store) Repos() repo.Repos {
	st := &state{store: s, live: true, groups: s.groups, participants: s.participants}
	return st.repos()
}

// InTx implements repo.TxRunner.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := s.begin()
	if err := fn(ctx, st.repos()); err != nil {
		return err
	}
	// A cancelled caller must not see its work committed behind its back.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(st)
}

// Ping reports whether the store is usable. It always is.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) begin() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &state{
		store:        s,
		groups:       maps.Clone(s.groups),
		participants: maps.Clone(s.participants),
		base:         make(map[int64]int64),
		groupWrites:  make(map[int64]bool),
		partWrites:   make(map[int64]bool),
		partDeletes:  make(map[int64]bool),
	}
}

func (s *Store) commit(st *state) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seen := range st.base {
		cur, ok := s.groups[id]
		if !ok {
			return fmt.Errorf("memory.Store.commit: group %d: %w", id, domain.ErrGroupNotFound)
		}
		if cur.Version != seen {
			return fmt.Errorf("memory.Store.commit: group %d read at version %d, now %d: %w",
				id, seen, cur.Version, domain.ErrConflict)
		}
	}
	for id := range st.partWrites {
		p := st.participants[id]
		for otherID, other := range s.participants {
			if otherID == id || st.partDeletes[otherID] {
				continue
			}
			if other.GroupID == p.GroupID && other.UserID == p.UserID {
				return fmt.Errorf("memory.Store.commit: %w", domain.ErrAlreadyJoined)
			}
		}
	}

	for id := range st.base {
		if st.groupWrites[id] {
			continue
		}
		g := s.groups[id]
		g.Version++
		s.groups[id] = g
	}
	for id := range st.groupWrites {
		s.groups[id] = st.groups[id]
	}
	for id := range st.partDeletes {
		delete(s.participants, id)
	}
	for id := range st.partWrites {
		s.participants[id] = st.participants[id]
	}
	return nil
}

// state is one transaction's view of the store, or the live view when live
// is set. In the live view every method takes the store lock itself.
type state struct {
	store *Store
	live  bool

	groups       map[int64]domain.Group
	participants map[int64]domain.Participant

	base        map[int64]int64 // group id -> version first seen under lock
	groupWrites map[int64]bool
	partWrites  map[int64]bool
	partDeletes map[int64]bool
}

func (st *state) repos() repo.Repos {
	return repo.Repos{
		Groups:       &groupRepo{st: st},
		Participants: &participantRepo{st: st},
	}
}

func (st *state) rlock() func() {
	if !st.live {
		return func() {}
	}
	st.store.mu.RLock()
	return st.store.mu.RUnlock
}

func (st *state) lock() func() {
	if !st.live {
		return func() {}
	}
	st.store.mu.Lock()
	return st.store.mu.Unlock
}

func (st *state) track(groupID, version int64) {
	if st.live {
		return
	}
	if _, ok := st.base[groupID]; !ok {
		st.base[groupID] = version
	}
}

func (st *state) markGroup(id int64) {
	if !st.live {
		st.groupWrites[id] = true
	}
}

func (st *state) markParticipant(id int64) {
	if !st.live {
		st.partWrites[id] = true
	}
}

func (st *state) markDeleted(id int64) {
	if !st.live {
		delete(st.partWrites, id)
		st.partDeletes[id] = true
	}
}

// newestFirst orders groups the way the Postgres listing queries do.
func newestFirst(a, b domain.Group) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

func (st *state) filterGroups(keep func(domain.Group) bool) []domain.Group {
	out := []domain.Group{}
	for _, g := range st.groups {
		if keep(g) {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

func (st *state) filterParticipants(keep func(domain.Participant) bool) []domain.Participant {
	out := []domain.Participant{}
	for _, p := range st.participants {
		if keep(p) {
			out = append(out, detach(p))
		}
	}
	slices.SortFunc(out, func(a, b domain.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
