package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/handler"
	"github.com/pkordes/splitbuy/internal/metrics"
)

// mockPinger is a hand-written test double for handler.Pinger.
type mockPinger struct {
	ping func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.ping(ctx) }

var _ handler.Pinger = (*mockPinger)(nil)

func newRouter(t *testing.T, ping func(context.Context) error) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	return handler.NewRouter(handler.NewServer(&mockPinger{ping: ping}), slog.New(slog.DiscardHandler), reg)
}

// TestGetHealth_returns200WithOKStatus verifies that GET /healthz returns
// HTTP 200 and a JSON body of {"status":"ok"} when the store answers.
func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	h := newRouter(t, func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

// TestGetHealth_returns503WhenStoreDown verifies that a failing ping is
// reported as unavailable rather than as a server error.
func TestGetHealth_returns503WhenStoreDown(t *testing.T) {
	h := newRouter(t, func(context.Context) error { return errors.New("connection refused") })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "unavailable", body["status"])
	require.Equal(t, "connection refused", body["error"])
}

// TestMetrics_exposesRegisteredCollectors verifies that /metrics serves the
// registry handed to the router in the Prometheus text format.
func TestMetrics_exposesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.GroupFilled()
	h := handler.NewRouter(handler.NewServer(&mockPinger{ping: func(context.Context) error { return nil }}), slog.New(slog.DiscardHandler), reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "splitbuy_groups_filled_total 1")
}
