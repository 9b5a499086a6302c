package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/repo"
)

// GroupService manages the group itself: creation, the host's edits and
// cancellation, and the read-side views.
type GroupService struct {
	c *coordinator
}

// Create opens a new RECRUITING group hosted by p.HostUserID.
func (s *GroupService) Create(ctx context.Context, p domain.NewGroupParams) (domain.Group, error) {
	g, err := domain.NewGroup(p, s.c.clock.Now())
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Create: %w", err)
	}

	var out domain.Group
	err = s.c.mutate(ctx, opCreateGroup, 0, func(ctx context.Context, r repo.Repos, _ *effects) error {
		created, err := r.Groups.Create(ctx, g)
		if err != nil {
			return err
		}
		created.Participants = []domain.Participant{}
		out = created
		return nil
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Create: %w", err)
	}
	s.c.log.InfoContext(ctx, "group created", "op", opCreateGroup, "group_id", out.ID, "user_id", out.HostUserID)
	return out, nil
}

// Update applies a partial update on behalf of hostID. Title, price and
// capacity are frozen once anyone holds a seat.
func (s *GroupService) Update(ctx context.Context, groupID, hostID int64, u domain.GroupUpdate) (domain.Group, error) {
	var out domain.Group
	err := s.c.mutate(ctx, opUpdateGroup, groupID, func(ctx context.Context, r repo.Repos, _ *effects) error {
		g, err := r.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if err := g.ValidateHost(hostID); err != nil {
			return err
		}
		if err := g.Update(u, s.c.clock.Now()); err != nil {
			return err
		}
		out, err = r.Groups.Update(ctx, g)
		return err
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Update: %w", err)
	}
	s.c.log.InfoContext(ctx, "group updated", "op", opUpdateGroup, "group_id", groupID, "user_id", hostID)
	return out, nil
}

// Cancel soft-deletes a recruiting group that nobody has been admitted to.
// Pending requests are deleted with it.
func (s *GroupService) Cancel(ctx context.Context, groupID, hostID int64) (domain.Group, error) {
	var out domain.Group
	err := s.c.mutate(ctx, opCancelGroup, groupID, func(ctx context.Context, r repo.Repos, _ *effects) error {
		g, err := loadForUpdate(ctx, r, groupID)
		if err != nil {
			return err
		}
		if err := g.ValidateHost(hostID); err != nil {
			return err
		}
		removed, err := g.Cancel()
		if err != nil {
			return err
		}
		for _, p := range removed {
			if err := r.Participants.Delete(ctx, p.ID); err != nil {
				return err
			}
		}
		if out, err = r.Groups.Update(ctx, g); err != nil {
			return err
		}
		out.Participants = g.Participants
		return nil
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Cancel: %w", err)
	}
	s.c.log.InfoContext(ctx, "group cancelled", "op", opCancelGroup, "group_id", groupID, "user_id", hostID)
	return out, nil
}

// Get returns a group with its participants. It reads without locking and
// may observe a group between two mutations.
func (s *GroupService) Get(ctx context.Context, groupID int64) (domain.Group, error) {
	g, err := s.c.reads.Groups.GetByID(ctx, groupID)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Get: %w", err)
	}
	ps, err := s.c.reads.Participants.ListByGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Get: %w", err)
	}
	g.Participants = ps
	return g, nil
}

// ListRecruiting returns one page of groups still accepting requests,
// newest first, and the total number of such groups.
func (s *GroupService) ListRecruiting(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	groups, total, err := s.c.reads.Groups.ListByStatus(ctx, domain.GroupRecruiting, p.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("service.GroupService.ListRecruiting: %w", err)
	}
	return groups, total, nil
}

// ListMine returns every group userID hosts or has a membership record in,
// newest group first.
func (s *GroupService) ListMine(ctx context.Context, userID int64) ([]domain.GroupSummary, error) {
	hosted, err := s.c.reads.Groups.ListByHost(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.GroupService.ListMine: %w", err)
	}
	joined, err := s.c.reads.Groups.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.GroupService.ListMine: %w", err)
	}
	memberships, err := s.c.reads.Participants.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.GroupService.ListMine: %w", err)
	}

	byGroup := make(map[int64]domain.Participant, len(memberships))
	for _, p := range memberships {
		byGroup[p.GroupID] = p
	}

	type row struct {
		group   domain.Group
		summary domain.GroupSummary
	}
	rows := make([]row, 0, len(hosted)+len(joined))
	for _, g := range hosted {
		rows = append(rows, row{g, domain.SummaryForHost(g)})
	}
	for _, g := range joined {
		// A membership deleted between the two reads drops the group.
		p, ok := byGroup[g.ID]
		if !ok {
			continue
		}
		rows = append(rows, row{g, domain.SummaryForParticipant(g, p)})
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		if c := b.group.CreatedAt.Compare(a.group.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.group.ID, a.group.ID)
	})

	out := make([]domain.GroupSummary, len(rows))
	for i, r := range rows {
		out[i] = r.summary
	}
	return out, nil
}

// ParticipantCount returns how many participants hold a seat in groupID.
func (s *GroupService) ParticipantCount(ctx context.Context, groupID int64) (int64, error) {
	if _, err := s.c.reads.Groups.GetByID(ctx, groupID); err != nil {
		return 0, fmt.Errorf("service.GroupService.ParticipantCount: %w", err)
	}
	n, err := s.c.reads.Participants.CountApproved(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("service.GroupService.ParticipantCount: %w", err)
	}
	return n, nil
}
