package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/guard"
	"github.com/pkordes/splitbuy/internal/repo"
	"github.com/pkordes/splitbuy/internal/repo/memory"
	"github.com/pkordes/splitbuy/internal/service"
)

// now is the fixed "current time" every test runs at.
var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

const hostID int64 = 100

// recorder is a Notifier that keeps everything it is handed.
type recorder struct {
	mu    sync.Mutex
	notes []domain.Notification
	err   error
}

func (r *recorder) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

func (r *recorder) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

func (r *recorder) ofType(typ domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range r.all() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

// mockTxRunner is a hand-written test double for repo.TxRunner.
type mockTxRunner struct {
	inTx func(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error
}

func (m *mockTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error {
	return m.inTx(ctx, fn)
}

// mockLocker is a hand-written test double for guard.Locker.
type mockLocker struct {
	lock func(ctx context.Context, key int64) (func(), error)
}

func (m *mockLocker) Lock(ctx context.Context, key int64) (func(), error) {
	return m.lock(ctx, key)
}

// compile-time checks.
var (
	_ repo.TxRunner    = (*mockTxRunner)(nil)
	_ guard.Locker     = (*mockLocker)(nil)
	_ service.Notifier = (*recorder)(nil)
)

// ---- fixture ---------------------------------------------------------------

type fixture struct {
	store *memory.Store
	notes *recorder
	deps  service.Deps
	svc   service.Services
}

func newFixture(t *testing.T, opts ...func(*service.Deps)) *fixture {
	t.Helper()
	store := memory.New()
	notes := &recorder{}
	d := service.Deps{
		Tx:         store,
		Reads:      store.Repos(),
		Guard:      guard.NewKeyedMutex(),
		Notifier:   notes,
		Clock:      domain.FixedClock(now),
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		TxTimeout:  5 * time.Second,
	}
	for _, o := range opts {
		o(&d)
	}
	return &fixture{store: store, notes: notes, deps: d, svc: service.New(d)}
}

// with builds a second set of services over the same store, changing deps.
func (f *fixture) with(change func(*service.Deps)) service.Services {
	d := f.deps
	change(&d)
	return service.New(d)
}

func validParams() domain.NewGroupParams {
	return domain.NewGroupParams{
		HostUserID:      hostID,
		Title:           "Olive oil 2L x5",
		TotalPrice:      decimal.RequireFromString("80000"),
		MaxParticipants: 4,
		PickupLocation:  "Gate 3, Hanam store",
		ClosedAt:        time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) createGroup(t *testing.T, maxParticipants int) domain.Group {
	t.Helper()
	p := validParams()
	p.MaxParticipants = maxParticipants
	g, err := f.svc.Groups.Create(context.Background(), p)
	require.NoError(t, err)
	return g
}

func (f *fixture) join(t *testing.T, groupID int64, users ...int64) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.Admission.Join(context.Background(), groupID, u, nil)
		require.NoError(t, err)
	}
}

func (f *fixture) approve(t *testing.T, groupID int64, users ...int64) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.Admission.Approve(context.Background(), groupID, hostID, u)
		require.NoError(t, err)
	}
}

func (f *fixture) group(t *testing.T, id int64) domain.Group {
	t.Helper()
	g, err := f.svc.Groups.Get(context.Background(), id)
	require.NoError(t, err)
	return g
}
