package metrics_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/metrics"
)

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"not_found": fmt.Errorf("svc: %w", domain.ErrGroupNotFound),
		"invalid":   domain.ErrInvalidClosingDate,
		"rejected":  domain.ErrFull,
		"forbidden": domain.ErrNotHost,
		"conflict":  domain.ErrConflict,
		"error":     errors.New("db down"),
	}
	for want, err := range cases {
		assert.Equal(t, want, metrics.Outcome(err), "error %v", err)
	}
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.ObserveOperation("approve", time.Now(), nil)
	m.ObserveOperation("approve", time.Now(), domain.ErrFull)
	m.Conflict("approve")
	m.GroupFilled()
	m.Notification(domain.NotifyGroupFull, nil)

	n, err := promtest.GatherAndCount(reg, "splitbuy_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	filled, err := promtest.GatherAndCount(reg, "splitbuy_groups_filled_total")
	require.NoError(t, err)
	assert.Equal(t, 1, filled)
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("join", time.Now(), nil)
		m.Conflict("join")
		m.GroupFilled()
		m.Notification(domain.NotifyApproved, nil)
	})
}
