package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupSummary is one row of a user's "my groups" listing: a flat view of a
// group with the caller's relationship to it.
//
// ParticipantStatus and ShareAmount are empty when IsHost is true, because
// the host has no participant record.
type GroupSummary struct {
	GroupID             int64
	Title               string
	TotalPrice          decimal.Decimal
	CurrentParticipants int
	MaxParticipants     int
	Status              GroupStatus
	ClosedAt            time.Time
	IsHost              bool

	ParticipantStatus ParticipantStatus
	ShareAmount       decimal.NullDecimal
}

// SummaryForHost builds the host's row for g.
func SummaryForHost(g Group) GroupSummary {
	s := summaryOf(g)
	s.IsHost = true
	s.ShareAmount = decimal.NewNullDecimal(g.HostShare())
	return s
}

// SummaryForParticipant builds p's row for g.
func SummaryForParticipant(g Group, p Participant) GroupSummary {
	s := summaryOf(g)
	s.ParticipantStatus = p.Status
	s.ShareAmount = p.ShareAmount
	return s
}

func summaryOf(g Group) GroupSummary {
	return GroupSummary{
		GroupID:             g.ID,
		Title:               g.Title,
		TotalPrice:          g.TotalPrice,
		CurrentParticipants: g.CurrentParticipants,
		MaxParticipants:     g.MaxParticipants,
		Status:              g.Status,
		ClosedAt:            g.ClosedAt,
	}
}
