// Package domain contains the split-purchase group aggregate, its participants
// and the rules that govern admission. Nothing in this package performs I/O;
// every method is a synchronous state transition that the service layer
// persists and serializes per group.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// GroupStatus is the lifecycle state of a Group.
//
//	RECRUITING -> FULL -> CLOSED / COMPLETED
//	RECRUITING -> CANCELLED
type GroupStatus string

const (
	GroupRecruiting GroupStatus = "RECRUITING"
	GroupFull       GroupStatus = "FULL"
	GroupClosed     GroupStatus = "CLOSED"
	GroupCompleted  GroupStatus = "COMPLETED"
	GroupCancelled  GroupStatus = "CANCELLED"
)

// MaxTitleLength matches the width of the title column.
const MaxTitleLength = 50

// Group is one split-purchase session: a host offers a product at a fixed
// total price and admits up to MaxParticipants other users to share the cost.
//
// Invariants held by every method:
//   - 0 <= CurrentParticipants <= MaxParticipants
//   - Status == GroupFull exactly when CurrentParticipants == MaxParticipants
//     (while the group has not moved on to CLOSED / COMPLETED)
//   - once any participant holds a seat, title, price and capacity are frozen
//     and the group cannot be cancelled
//
// The host is never a Participant. The host's seat is accounted for in the
// share computation only; see HostShare.
type Group struct {
	ID                  int64           `json:"id"`
	HostUserID          int64           `json:"host_user_id"`
	Title               string          `json:"title"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	MaxParticipants     int             `json:"max_participants"`
	CurrentParticipants int             `json:"current_participants"`
	PickupLocation      string          `json:"pickup_location,omitempty"`
	PickupLocationGeo   string          `json:"pickup_location_geo,omitempty"`
	ClosedAt            time.Time       `json:"closed_at"` // calendar date, time of day ignored
	Status              GroupStatus     `json:"status"`
	// Version is bumped on every persisted change and checked on save.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Participants is populated when the group is loaded for a mutation or
	// for display; it is nil when only the group row was read.
	Participants []Participant `json:"participants,omitempty"`
}

// NewGroupParams is the input to NewGroup.
type NewGroupParams struct {
	HostUserID      int64
	Title           string
	TotalPrice      decimal.Decimal
	MaxParticipants int
	PickupLocation  string
	ClosedAt        time.Time
}

// NewGroup validates p and returns a RECRUITING group with no participants.
// now is the caller's notion of the current time; the closing date must fall
// strictly after tomorrow relative to it.
func NewGroup(p NewGroupParams, now time.Time) (Group, error) {
	title, err := validateTitle(p.Title)
	if err != nil {
		return Group{}, err
	}
	if err := validatePrice(p.TotalPrice); err != nil {
		return Group{}, err
	}
	if p.MaxParticipants < 1 {
		return Group{}, ErrInvalidCapacity
	}
	if err := validateClosingDate(p.ClosedAt, now); err != nil {
		return Group{}, err
	}
	return Group{
		HostUserID:      p.HostUserID,
		Title:           title,
		TotalPrice:      p.TotalPrice,
		MaxParticipants: p.MaxParticipants,
		PickupLocation:  strings.TrimSpace(p.PickupLocation),
		ClosedAt:        civilDate(p.ClosedAt),
		Status:          GroupRecruiting,
		Participants:    []Participant{},
	}, nil
}

// GroupUpdate is a partial update of a Group. Absent fields are left alone.
// Title, TotalPrice, MaxParticipants and ClosedAt cannot be cleared; the
// pickup location fields can.
type GroupUpdate struct {
	Title             Patch[string]
	TotalPrice        Patch[decimal.Decimal]
	MaxParticipants   Patch[int]
	PickupLocation    Patch[string]
	PickupLocationGeo Patch[string]
	ClosedAt          Patch[time.Time]
}

// touchesTerms reports whether u tries to change any commercial term that is
// frozen once participants exist. Supplying a field counts as an attempt even
// when the value is unchanged.
func (u GroupUpdate) touchesTerms() bool {
	return u.Title.Present() || u.TotalPrice.Present() || u.MaxParticipants.Present()
}

// Update applies u to the group. Either every field is applied or none is.
func (g *Group) Update(u GroupUpdate, now time.Time) error {
	if g.HasParticipants() && u.touchesTerms() {
		return ErrImmutableWithParticipants
	}

	next := *g
	if u.Title.Present() {
		v, ok := u.Title.Get()
		if !ok {
			return fmt.Errorf("%w: title cannot be cleared", ErrValidation)
		}
		title, err := validateTitle(v)
		if err != nil {
			return err
		}
		next.Title = title
	}
	if u.TotalPrice.Present() {
		v, ok := u.TotalPrice.Get()
		if !ok {
			return fmt.Errorf("%w: total price cannot be cleared", ErrValidation)
		}
		if err := validatePrice(v); err != nil {
			return err
		}
		next.TotalPrice = v
	}
	if u.MaxParticipants.Present() {
		v, ok := u.MaxParticipants.Get()
		if !ok || v < 1 {
			return ErrInvalidCapacity
		}
		next.MaxParticipants = v
	}
	if u.ClosedAt.Present() {
		v, ok := u.ClosedAt.Get()
		if !ok {
			return fmt.Errorf("%w: closing date cannot be cleared", ErrValidation)
		}
		if err := validateClosingDate(v, now); err != nil {
			return err
		}
		next.ClosedAt = civilDate(v)
	}
	next.PickupLocation = strings.TrimSpace(u.PickupLocation.Apply(g.PickupLocation))
	next.PickupLocationGeo = strings.TrimSpace(u.PickupLocationGeo.Apply(g.PickupLocationGeo))

	*g = next
	return nil
}

// Cancel soft-deletes a recruiting group with no approved participants.
// Pending requests cannot outlive the group, so they are dropped from the
// aggregate and returned for the caller to delete.
func (g *Group) Cancel() ([]Participant, error) {
	if !g.IsRecruiting() {
		return nil, ErrNotRecruiting
	}
	if g.HasParticipants() {
		return nil, ErrHasParticipants
	}
	removed := g.Participants
	g.Participants = []Participant{}
	g.Status = GroupCancelled
	return removed, nil
}

// ValidateCanJoin fails unless the group is recruiting and has a free seat.
// Only the status is consulted; a group past its closing date stays joinable
// until something flips its status.
func (g Group) ValidateCanJoin() error {
	if !g.IsRecruiting() {
		return ErrNotRecruiting
	}
	if g.IsFull() {
		return ErrFull
	}
	return nil
}

// ValidateHost fails unless userID is the group's host.
func (g Group) ValidateHost(userID int64) error {
	if userID != g.HostUserID {
		return ErrNotHost
	}
	return nil
}

// ApproveParticipant admits p into the group at the current share amount.
// It returns true when this approval filled the last seat and moved the
// group to FULL; that happens at most once per group because every later
// approval fails with ErrFull.
//
// p must point into g.Participants (see Participant) so the aggregate and
// the returned record stay in step.
func (g *Group) ApproveParticipant(p *Participant) (bool, error) {
	if p.GroupID != g.ID {
		return false, ErrParticipantNotFound
	}
	if p.Status.HoldsSeat() {
		return false, ErrAlreadyApproved
	}
	if g.IsFull() {
		return false, ErrFull
	}
	if !g.IsRecruiting() {
		return false, ErrNotRecruiting
	}
	if err := p.Approve(g.CalculateShareAmount()); err != nil {
		return false, err
	}
	g.CurrentParticipants++
	if g.CurrentParticipants >= g.MaxParticipants {
		g.Status = GroupFull
		return true, nil
	}
	return false, nil
}

// CalculateShareAmount is the per-member cost: the total price split across
// every participant seat plus the host, rounded half-down to cents.
func (g Group) CalculateShareAmount() decimal.Decimal {
	return ShareAmount(g.TotalPrice, g.Headcount())
}

// Headcount is the number of members who split the price: every participant
// seat plus the host.
func (g Group) Headcount() int {
	return g.MaxParticipants + 1
}

// HostShare is the host's own contribution. The host has no Participant row,
// so code that sums participant shares must add this separately.
func (g Group) HostShare() decimal.Decimal {
	return g.CalculateShareAmount()
}

// IsFull reports whether every participant seat is taken.
func (g Group) IsFull() bool { return g.CurrentParticipants >= g.MaxParticipants }

// HasParticipants reports whether any participant holds a seat.
func (g Group) HasParticipants() bool { return g.CurrentParticipants > 0 }

// IsRecruiting reports whether the group accepts join requests.
func (g Group) IsRecruiting() bool { return g.Status == GroupRecruiting }

// Participant returns the membership record of userID, or false when the
// user has none. The pointer aliases g.Participants.
func (g *Group) Participant(userID int64) (*Participant, bool) {
	for i := range g.Participants {
		if g.Participants[i].UserID == userID {
			return &g.Participants[i], true
		}
	}
	return nil, false
}

// RemoveParticipant drops userID's record from the aggregate.
func (g *Group) RemoveParticipant(userID int64) {
	for i := range g.Participants {
		if g.Participants[i].UserID == userID {
			g.Participants = append(g.Participants[:i], g.Participants[i+1:]...)
			return
		}
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrValidation, MaxTitleLength)
	}
	return title, nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: total price must be positive", ErrValidation)
	}
	if price.Exponent() < -sharePlaces && !price.Equal(price.Truncate(sharePlaces)) {
		return fmt.Errorf("%w: total price has more than %d decimal places", ErrValidation, sharePlaces)
	}
	return nil
}

// validateClosingDate requires closedAt to fall strictly after tomorrow,
// leaving at least one full day of recruiting.
func validateClosingDate(closedAt, now time.Time) error {
	if closedAt.IsZero() {
		return ErrInvalidClosingDate
	}
	tomorrow := civilDate(now).AddDate(0, 0, 1)
	if !civilDate(closedAt).After(tomorrow) {
		return ErrInvalidClosingDate
	}
	return nil
}
