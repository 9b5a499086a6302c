package memory

import (
	"context"
	"fmt"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/repo"
)

var (
	_ repo.GroupRepo       = (*groupRepo)(nil)
	_ repo.ParticipantRepo = (*participantRepo)(nil)
	_ repo.TxRunner        = (*Store)(nil)
)

type groupRepo struct {
	st *state
}

func (r *groupRepo) Create(_ context.Context, g domain.Group) (domain.Group, error) {
	defer r.st.lock()()

	now := r.st.store.now()
	g.ID = r.st.store.groupSeq.Add(1)
	g.Version = 1
	g.CreatedAt, g.UpdatedAt = now, now
	g.Participants = nil
	r.st.groups[g.ID] = g
	r.st.markGroup(g.ID)
	return g, nil
}

func (r *groupRepo) GetByID(_ context.Context, id int64) (domain.Group, error) {
	defer r.st.rlock()()

	g, ok := r.st.groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("memory.GroupRepo.GetByID: %w", domain.ErrGroupNotFound)
	}
	return g, nil
}

func (r *groupRepo) GetForUpdate(_ context.Context, id int64) (domain.Group, error) {
	defer r.st.rlock()()

	g, ok := r.st.groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("memory.GroupRepo.GetForUpdate: %w", domain.ErrGroupNotFound)
	}
	r.st.track(id, g.Version)
	return g, nil
}

func (r *groupRepo) Update(_ context.Context, g domain.Group) (domain.Group, error) {
	defer r.st.lock()()

	cur, ok := r.st.groups[g.ID]
	if !ok {
		return domain.Group{}, fmt.Errorf("memory.GroupRepo.Update: %w", domain.ErrGroupNotFound)
	}
	if cur.Version != g.Version {
		return domain.Group{}, fmt.Errorf("memory.GroupRepo.Update: group %d version %d: %w", g.ID, g.Version, domain.ErrConflict)
	}
	r.st.track(g.ID, cur.Version)

	g.Version = cur.Version + 1
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = r.st.store.now()
	g.Participants = nil
	r.st.groups[g.ID] = g
	r.st.markGroup(g.ID)
	return g, nil
}

func (r *groupRepo) ListByStatus(_ context.Context, status domain.GroupStatus, p domain.PaginationParams) ([]domain.Group, int64, error) {
	defer r.st.rlock()()

	all := r.st.filterGroups(func(g domain.Group) bool { return g.Status == status })
	total := int64(len(all))
	p = p.Normalize()
	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], total, nil
}

func (r *groupRepo) ListByHost(_ context.Context, userID int64) ([]domain.Group, error) {
	defer r.st.rlock()()

	return r.st.filterGroups(func(g domain.Group) bool { return g.HostUserID == userID }), nil
}

func (r *groupRepo) ListByParticipant(_ context.Context, userID int64) ([]domain.Group, error) {
	defer r.st.rlock()()

	joined := make(map[int64]bool)
	for _, p := range r.st.participants {
		if p.UserID == userID {
			joined[p.GroupID] = true
		}
	}
	return r.st.filterGroups(func(g domain.Group) bool { return joined[g.ID] }), nil
}

type participantRepo struct {
	st *state
}

func (r *participantRepo) Create(_ context.Context, p domain.Participant) (domain.Participant, error) {
	defer r.st.lock()()

	if _, ok := r.st.groups[p.GroupID]; !ok {
		return domain.Participant{}, fmt.Errorf("memory.ParticipantRepo.Create: %w", domain.ErrGroupNotFound)
	}
	if _, ok := r.st.find(p.GroupID, p.UserID); ok {
		return domain.Participant{}, fmt.Errorf("memory.ParticipantRepo.Create: %w", domain.ErrAlreadyJoined)
	}

	now := r.st.store.now()
	p = detach(p)
	p.ID = r.st.store.participantSeq.Add(1)
	p.JoinedAt, p.UpdatedAt = now, now
	r.st.participants[p.ID] = p
	r.st.markParticipant(p.ID)
	return detach(p), nil
}

func (r *participantRepo) FindByGroupAndUser(_ context.Context, groupID, userID int64) (domain.Participant, error) {
	defer r.st.rlock()()

	p, ok := r.st.find(groupID, userID)
	if !ok {
		return domain.Participant{}, fmt.Errorf("memory.ParticipantRepo.FindByGroupAndUser: %w", domain.ErrParticipantNotFound)
	}
	return detach(p), nil
}

func (r *participantRepo) Exists(_ context.Context, groupID, userID int64) (bool, error) {
	defer r.st.rlock()()

	_, ok := r.st.find(groupID, userID)
	return ok, nil
}

func (r *participantRepo) CountApproved(_ context.Context, groupID int64) (int64, error) {
	defer r.st.rlock()()

	var n int64
	for _, p := range r.st.participants {
		if p.GroupID == groupID && p.Status.HoldsSeat() {
			n++
		}
	}
	return n, nil
}

func (r *participantRepo) ListByGroup(_ context.Context, groupID int64) ([]domain.Participant, error) {
	defer r.st.rlock()()

	return r.st.filterParticipants(func(p domain.Participant) bool { return p.GroupID == groupID }), nil
}

func (r *participantRepo) ListByUser(_ context.Context, userID int64) ([]domain.Participant, error) {
	defer r.st.rlock()()

	return r.st.filterParticipants(func(p domain.Participant) bool { return p.UserID == userID }), nil
}

func (r *participantRepo) Update(_ context.Context, p domain.Participant) (domain.Participant, error) {
	defer r.st.lock()()

	cur, ok := r.st.participants[p.ID]
	if !ok {
		return domain.Participant{}, fmt.Errorf("memory.ParticipantRepo.Update: %w", domain.ErrParticipantNotFound)
	}
	cur.Quantity = detach(p).Quantity
	cur.ShareAmount = p.ShareAmount
	cur.Status = p.Status
	cur.UpdatedAt = r.st.store.now()
	r.st.participants[p.ID] = cur
	r.st.markParticipant(p.ID)
	return detach(cur), nil
}

func (r *participantRepo) Delete(_ context.Context, id int64) error {
	defer r.st.lock()()

	if _, ok := r.st.participants[id]; !ok {
		return fmt.Errorf("memory.ParticipantRepo.Delete: %w", domain.ErrParticipantNotFound)
	}
	delete(r.st.participants, id)
	r.st.markDeleted(id)
	return nil
}

func (st *state) find(groupID, userID int64) (domain.Participant, bool) {
	for _, p := range st.participants {
		if p.GroupID == groupID && p.UserID == userID {
			return p, true
		}
	}
	return domain.Participant{}, false
}

// detach returns p with its own copy of Quantity, so neither the caller nor
// the store can change the other's record through the shared pointer.
func detach(p domain.Participant) domain.Participant {
	if p.Quantity != nil {
		q := *p.Quantity
		p.Quantity = &q
	}
	return p
}
