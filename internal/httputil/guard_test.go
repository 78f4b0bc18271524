// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_PassesThroughSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	g := NewGuard(ts.Client(), GuardConfig{})
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := g.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuard_ServerErrorReturnsResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	g := NewGuard(ts.Client(), GuardConfig{})
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := g.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGuard_TripsAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	g := NewGuard(ts.Client(), GuardConfig{BreakerTimeout: time.Minute})
	host := mustHost(t, ts.URL)

	for i := 0; i < consecutiveFailuresToTrip; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		resp, err := g.Do(context.Background(), req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, "open", g.State(host))

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err := g.Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(consecutiveFailuresToTrip), atomic.LoadInt32(&calls))
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer ts.Close()

	g := NewGuard(ts.Client(), GuardConfig{RequestsPerSecond: 0.01, Burst: 1})

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := g.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	// The bucket is now empty and refills far slower than the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Do(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
