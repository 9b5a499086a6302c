package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/notify"
	"github.com/pkordes/splitbuy/internal/service"
)

// ---- helpers ---------------------------------------------------------------

func sampleNotification() domain.Notification {
	g := domain.Group{ID: 42, HostUserID: 1, Title: "Eggs", MaxParticipants: 2}
	return domain.Approved(g, 10, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
}

// recorder is a hand-written Notifier that remembers what it was given.
type recorder struct {
	mu   sync.Mutex
	got  []domain.Notification
	fail error
}

func (r *recorder) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

var _ service.Notifier = (*recorder)(nil)

// ---- Log -------------------------------------------------------------------

func TestLog_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	l := notify.NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, l.Notify(context.Background(), sampleNotification()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notification", line["msg"])
	assert.Equal(t, "APPROVED", line["type"])
	assert.Equal(t, float64(10), line["user_id"])
	assert.Equal(t, float64(42), line["reference_id"])
}

// ---- Multi -----------------------------------------------------------------

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := notify.NewMulti(a, nil, b)

	require.NoError(t, m.Notify(context.Background(), sampleNotification()))

	assert.Equal(t, 2, m.Len())
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestMulti_JoinsFailuresWithoutStoppingOthers(t *testing.T) {
	errA := errors.New("broker down")
	a, b := &recorder{fail: errA}, &recorder{}
	m := notify.NewMulti(a, b)

	err := m.Notify(context.Background(), sampleNotification())

	assert.ErrorIs(t, err, errA)
	assert.Len(t, b.got, 1)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, notify.NewMulti().Notify(context.Background(), sampleNotification()))
}

func TestMulti_ReportsEveryFailure(t *testing.T) {
	errA, errB := errors.New("broker down"), errors.New("redis down")
	a, b, c := &recorder{fail: errA}, &recorder{fail: errB}, &recorder{}
	m := notify.NewMulti(a, b, c)

	err := m.Notify(context.Background(), sampleNotification())

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, c.got, 1)
}
