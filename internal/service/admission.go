package service

import (
	"context"
	"fmt"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/repo"
)

// AdmissionService moves users into and out of groups: join requests, the
// host's approve/reject decisions, and the participant's payment flag.
type AdmissionService struct {
	c *coordinator
}

// Approval is the result of a successful approve.
type Approval struct {
	Participant domain.Participant
	// Group is the group after the approval, participants included.
	Group domain.Group
	// BecameFull is true for the one approval that filled the last seat.
	BecameFull bool
}

// Join records a PENDING join request by userID and notifies the host.
// quantity is optional.
func (s *AdmissionService) Join(ctx context.Context, groupID, userID int64, quantity *int) (domain.Participant, error) {
	var out domain.Participant
	err := s.c.mutate(ctx, opJoin, groupID, func(ctx context.Context, r repo.Repos, fx *effects) error {
		g, err := r.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		exists, err := r.Participants.Exists(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyJoined
		}
		if err := g.ValidateCanJoin(); err != nil {
			return err
		}
		p, err := domain.NewParticipant(groupID, userID, quantity)
		if err != nil {
			return err
		}
		if out, err = r.Participants.Create(ctx, p); err != nil {
			return err
		}
		fx.notify(domain.JoinRequested(g, userID, s.c.clock.Now()))
		return nil
	})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("service.AdmissionService.Join: %w", err)
	}
	s.c.log.InfoContext(ctx, "join requested", "op", opJoin, "group_id", groupID, "user_id", userID)
	return out, nil
}

// CancelJoin withdraws userID's own PENDING request and retracts the host's
// join-request notification.
func (s *AdmissionService) CancelJoin(ctx context.Context, groupID, userID int64) error {
	err := s.c.mutate(ctx, opCancelJoin, groupID, func(ctx context.Context, r repo.Repos, fx *effects) error {
		g, err := r.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		p, err := r.Participants.FindByGroupAndUser(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if err := p.ValidateCancellable(); err != nil {
			return err
		}
		if err := r.Participants.Delete(ctx, p.ID); err != nil {
			return err
		}
		fx.notify(domain.JoinRequestWithdrawn(g, userID, s.c.clock.Now()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.AdmissionService.CancelJoin: %w", err)
	}
	s.c.log.InfoContext(ctx, "join cancelled", "op", opCancelJoin, "group_id", groupID, "user_id", userID)
	return nil
}

// Approve admits targetUserID's request. Only the host may approve. The
// target is told it was approved; if this approval filled the group every
// participant is told the group is full.
func (s *AdmissionService) Approve(ctx context.Context, groupID, hostID, targetUserID int64) (Approval, error) {
	var out Approval
	err := s.c.mutate(ctx, opApprove, groupID, func(ctx context.Context, r repo.Repos, fx *effects) error {
		g, err := loadForUpdate(ctx, r, groupID)
		if err != nil {
			return err
		}
		if err := g.ValidateHost(hostID); err != nil {
			return err
		}
		p, ok := g.Participant(targetUserID)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		filled, err := g.ApproveParticipant(p)
		if err != nil {
			return err
		}

		saved, err := r.Groups.Update(ctx, g)
		if err != nil {
			return err
		}
		updated, err := r.Participants.Update(ctx, *p)
		if err != nil {
			return err
		}
		*p = updated
		saved.Participants = g.Participants

		now := s.c.clock.Now()
		fx.notify(domain.Approved(saved, targetUserID, now))
		if filled {
			fx.filled = true
			fx.notify(domain.GroupFilled(saved, now)...)
		}
		out = Approval{Participant: updated, Group: saved, BecameFull: filled}
		return nil
	})
	if err != nil {
		return Approval{}, fmt.Errorf("service.AdmissionService.Approve: %w", err)
	}
	s.c.log.InfoContext(ctx, "participant approved",
		"op", opApprove,
		"group_id", groupID,
		"user_id", targetUserID,
		"share_amount", out.Participant.ShareAmount.Decimal.StringFixed(2),
		"became_full", out.BecameFull,
	)
	return out, nil
}

// Reject removes targetUserID's PENDING request and tells them. Only the
// host may reject. The user may apply again afterwards.
func (s *AdmissionService) Reject(ctx context.Context, groupID, hostID, targetUserID int64) error {
	err := s.c.mutate(ctx, opReject, groupID, func(ctx context.Context, r repo.Repos, fx *effects) error {
		g, err := r.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if err := g.ValidateHost(hostID); err != nil {
			return err
		}
		p, err := r.Participants.FindByGroupAndUser(ctx, groupID, targetUserID)
		if err != nil {
			return err
		}
		if err := p.ValidateRejectable(); err != nil {
			return err
		}
		if err := r.Participants.Delete(ctx, p.ID); err != nil {
			return err
		}
		fx.notify(domain.Rejected(g, targetUserID, s.c.clock.Now()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.AdmissionService.Reject: %w", err)
	}
	s.c.log.InfoContext(ctx, "participant rejected", "op", opReject, "group_id", groupID, "user_id", targetUserID)
	return nil
}

// MarkPaid flags userID's APPROVED membership as PAID. Payment capture
// happens elsewhere; this only records the outcome.
func (s *AdmissionService) MarkPaid(ctx context.Context, groupID, userID int64) (domain.Participant, error) {
	p, err := s.setPayment(ctx, opMarkPaid, groupID, userID, (*domain.Participant).MarkAsPaid)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("service.AdmissionService.MarkPaid: %w", err)
	}
	return p, nil
}

// CancelPayment reverts userID's PAID membership to APPROVED. The seat is
// kept.
func (s *AdmissionService) CancelPayment(ctx context.Context, groupID, userID int64) (domain.Participant, error) {
	p, err := s.setPayment(ctx, opCancelPayment, groupID, userID, (*domain.Participant).CancelPayment)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("service.AdmissionService.CancelPayment: %w", err)
	}
	return p, nil
}

func (s *AdmissionService) setPayment(ctx context.Context, op string, groupID, userID int64, transition func(*domain.Participant) error) (domain.Participant, error) {
	var out domain.Participant
	err := s.c.mutate(ctx, op, groupID, func(ctx context.Context, r repo.Repos, _ *effects) error {
		if _, err := r.Groups.GetForUpdate(ctx, groupID); err != nil {
			return err
		}
		p, err := r.Participants.FindByGroupAndUser(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if err := transition(&p); err != nil {
			return err
		}
		out, err = r.Participants.Update(ctx, p)
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	s.c.log.InfoContext(ctx, "payment flag changed", "op", op, "group_id", groupID, "user_id", userID, "status", string(out.Status))
	return out, nil
}
