package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParticipantStatus is a participant's position in the admission flow.
//
//	PENDING -> APPROVED -> PAID -> APPROVED (payment cancelled)
//
// A PENDING participant that cancels or is rejected is deleted, not parked
// in a terminal state, so the user may apply again.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "PENDING"
	ParticipantApproved ParticipantStatus = "APPROVED"
	ParticipantPaid     ParticipantStatus = "PAID"
)

// HoldsSeat reports whether a participant in this status counts toward the
// group's capacity. Paying does not give the seat back.
func (s ParticipantStatus) HoldsSeat() bool {
	return s == ParticipantApproved || s == ParticipantPaid
}

// Participant is one non-host user's membership record in a Group.
// It is owned by exactly one Group; a user holds at most one per group.
type Participant struct {
	ID       int64 `json:"id"`
	GroupID  int64 `json:"group_id"`
	UserID   int64 `json:"user_id"`
	Quantity *int  `json:"quantity,omitempty"` // nil when the user did not ask for a quantity
	// ShareAmount is fixed when the participant is approved and null before that.
	ShareAmount decimal.NullDecimal `json:"share_amount"`
	Status      ParticipantStatus   `json:"status"`
	JoinedAt    time.Time           `json:"joined_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewParticipant builds a PENDING membership request for userID in groupID.
func NewParticipant(groupID, userID int64, quantity *int) (Participant, error) {
	if quantity != nil && *quantity < 1 {
		return Participant{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	return Participant{
		GroupID:  groupID,
		UserID:   userID,
		Quantity: quantity,
		Status:   ParticipantPending,
	}, nil
}

// Approve moves a PENDING participant to APPROVED with the given share.
func (p *Participant) Approve(share decimal.Decimal) error {
	if p.Status.HoldsSeat() {
		return ErrAlreadyApproved
	}
	p.Status = ParticipantApproved
	p.ShareAmount = decimal.NewNullDecimal(share)
	return nil
}

// ValidateCancellable fails unless the participant is still PENDING.
// Once approved, leaving the group is no longer a self-service action.
func (p Participant) ValidateCancellable() error {
	if p.Status != ParticipantPending {
		return ErrNotCancellable
	}
	return nil
}

// ValidateRejectable fails unless the participant is still PENDING.
// Rejecting an approved member would free a seat without adjusting the
// group's counter.
func (p Participant) ValidateRejectable() error {
	if p.Status != ParticipantPending {
		return ErrNotPending
	}
	return nil
}

// MarkAsPaid flags an APPROVED participant as PAID.
func (p *Participant) MarkAsPaid() error {
	if p.Status != ParticipantApproved {
		return ErrNotApproved
	}
	p.Status = ParticipantPaid
	return nil
}

// CancelPayment reverts a PAID participant to APPROVED.
func (p *Participant) CancelPayment() error {
	if p.Status != ParticipantPaid {
		return ErrNotPaid
	}
	p.Status = ParticipantApproved
	return nil
}
