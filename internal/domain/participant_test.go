package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
)

func pending(t *testing.T) domain.Participant {
	t.Helper()
	p, err := domain.NewParticipant(1, 10, nil)
	require.NoError(t, err)
	return p
}

func TestNewParticipant_RejectsNonPositiveQuantity(t *testing.T) {
	zero := 0
	_, err := domain.NewParticipant(1, 10, &zero)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParticipant_Lifecycle(t *testing.T) {
	p := pending(t)
	assert.False(t, p.ShareAmount.Valid)

	require.NoError(t, p.Approve(decimal.NewFromInt(5000)))
	assert.Equal(t, domain.ParticipantApproved, p.Status)
	assert.True(t, p.ShareAmount.Valid)

	require.NoError(t, p.MarkAsPaid())
	assert.Equal(t, domain.ParticipantPaid, p.Status)

	require.NoError(t, p.CancelPayment())
	assert.Equal(t, domain.ParticipantApproved, p.Status)
	assert.Equal(t, "5000", p.ShareAmount.Decimal.String())
}

func TestParticipant_Approve_Twice(t *testing.T) {
	p := pending(t)
	require.NoError(t, p.Approve(decimal.NewFromInt(1)))

	assert.ErrorIs(t, p.Approve(decimal.NewFromInt(2)), domain.ErrAlreadyApproved)
	assert.Equal(t, "1", p.ShareAmount.Decimal.String())
}

func TestParticipant_ValidateCancellable(t *testing.T) {
	p := pending(t)
	assert.NoError(t, p.ValidateCancellable())
	assert.NoError(t, p.ValidateRejectable())

	require.NoError(t, p.Approve(decimal.NewFromInt(1)))
	assert.ErrorIs(t, p.ValidateCancellable(), domain.ErrNotCancellable)
	assert.ErrorIs(t, p.ValidateRejectable(), domain.ErrNotPending)
}

func TestParticipant_PaymentPreconditions(t *testing.T) {
	p := pending(t)
	assert.ErrorIs(t, p.MarkAsPaid(), domain.ErrNotApproved)
	assert.ErrorIs(t, p.CancelPayment(), domain.ErrNotPaid)

	require.NoError(t, p.Approve(decimal.NewFromInt(1)))
	assert.ErrorIs(t, p.CancelPayment(), domain.ErrNotPaid)
}

func TestParticipantStatus_HoldsSeat(t *testing.T) {
	assert.False(t, domain.ParticipantPending.HoldsSeat())
	assert.True(t, domain.ParticipantApproved.HoldsSeat())
	assert.True(t, domain.ParticipantPaid.HoldsSeat())
}
