package repo_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/repo"
)

func createParticipant(t *testing.T, r repo.Repos, groupID, userID int64) domain.Participant {
	t.Helper()
	p, err := domain.NewParticipant(groupID, userID, nil)
	require.NoError(t, err)
	got, err := r.Participants.Create(context.Background(), p)
	require.NoError(t, err)
	return got
}

func TestParticipantRepo_Create(t *testing.T) {
	r := newTestRepos(t)
	g := createGroup(t, r, groupFixture())

	qty := 2
	p, err := domain.NewParticipant(g.ID, 10, &qty)
	require.NoError(t, err)
	got, err := r.Participants.Create(context.Background(), p)

	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, domain.ParticipantPending, got.Status)
	assert.False(t, got.ShareAmount.Valid)
	require.NotNil(t, got.Quantity)
	assert.Equal(t, 2, *got.Quantity)
}

func TestParticipantRepo_Create_Duplicate(t *testing.T) {
	r := newTestRepos(t)
	g := createGroup(t, r, groupFixture())
	createParticipant(t, r, g.ID, 10)

	p, _ := domain.NewParticipant(g.ID, 10, nil)
	_, err := r.Participants.Create(context.Background(), p)

	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)
}

func TestParticipantRepo_Create_UnknownGroup(t *testing.T) {
	r := newTestRepos(t)

	p, _ := domain.NewParticipant(987654321, 10, nil)
	_, err := r.Participants.Create(context.Background(), p)

	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestParticipantRepo_FindExistsCount(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	g := createGroup(t, r, groupFixture())
	a := createParticipant(t, r, g.ID, 10)
	createParticipant(t, r, g.ID, 20)

	found, err := r.Participants.FindByGroupAndUser(ctx, g.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = r.Participants.FindByGroupAndUser(ctx, g.ID, 99)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	ok, err := r.Participants.Exists(ctx, g.ID, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Participants.Exists(ctx, g.ID, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Approve(decimal.RequireFromString("11250.12")))
	_, err = r.Participants.Update(ctx, a)
	require.NoError(t, err)

	n, err := r.Participants.CountApproved(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestParticipantRepo_Update_RoundTripsShare(t *testing.T) {
	r := newTestRepos(t)
	g := createGroup(t, r, groupFixture())
	p := createParticipant(t, r, g.ID, 10)

	require.NoError(t, p.Approve(decimal.RequireFromString("11250.12")))
	require.NoError(t, p.MarkAsPaid())
	got, err := r.Participants.Update(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantPaid, got.Status)
	require.True(t, got.ShareAmount.Valid)
	assert.Equal(t, "11250.12", got.ShareAmount.Decimal.StringFixed(2))
}

func TestParticipantRepo_ListByGroupAndUser(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	g1 := createGroup(t, r, groupFixture())
	g2 := createGroup(t, r, groupFixture())
	createParticipant(t, r, g1.ID, 10)
	createParticipant(t, r, g1.ID, 20)
	createParticipant(t, r, g2.ID, 10)

	byGroup, err := r.Participants.ListByGroup(ctx, g1.ID)
	require.NoError(t, err)
	assert.Len(t, byGroup, 2)

	byUser, err := r.Participants.ListByUser(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	empty, err := r.Participants.ListByGroup(ctx, 987654321)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestParticipantRepo_Delete(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	g := createGroup(t, r, groupFixture())
	p := createParticipant(t, r, g.ID, 10)

	require.NoError(t, r.Participants.Delete(ctx, p.ID))

	err := r.Participants.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}
