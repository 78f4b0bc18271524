// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned when a host's circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// consecutiveFailuresToTrip opens a host's breaker after this many failures in a row.
const consecutiveFailuresToTrip = 3

// GuardConfig configures a Guard.
type GuardConfig struct {
	// RequestsPerSecond per host; 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	// BreakerTimeout is how long an open breaker rejects calls (default 30s).
	BreakerTimeout time.Duration

	// MaxRetries is passed to DoWithRetry (0 = default).
	MaxRetries int
}

// Guard wraps an http.Client with a token bucket and a circuit breaker per
// request host. Server errors (5xx) and transport errors count as failures.
type Guard struct {
	client *http.Client
	cfg    GuardConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewGuard returns a Guard around client. A nil client uses http.DefaultClient.
func NewGuard(client *http.Client, cfg GuardConfig) *Guard {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Guard{
		client:   client,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Client returns the wrapped client.
func (g *Guard) Client() *http.Client { return g.client }

// Do waits for the host's rate limiter, then executes req with retry through
// the host's circuit breaker. The caller owns the returned body.
func (g *Guard) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	if lim := g.limiter(host); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait for %s: %w", host, err)
		}
	}

	out, err := g.breaker(host).Execute(func() (any, error) {
		resp, err := DoWithRetry(ctx, g.client, req, g.cfg.MaxRetries)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			// Hand the response back so the caller sees the status, but
			// count the call as a failure.
			return resp, fmt.Errorf("%s returned HTTP %d", host, resp.StatusCode)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", host, ErrCircuitOpen)
	}
	if resp, ok := out.(*http.Response); ok && resp != nil {
		return resp, nil
	}
	return nil, err
}

// State reports the breaker state for host ("closed", "half-open", "open").
func (g *Guard) State(host string) string {
	return g.breaker(host).State().String()
}

func (g *Guard) limiter(host string) *rate.Limiter {
	if g.cfg.RequestsPerSecond <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	lim, ok := g.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(g.cfg.RequestsPerSecond), g.cfg.Burst)
		g.limiters[host] = lim
	}
	return lim
}

func (g *Guard) breaker(host string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[host]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    host,
			Timeout: g.cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
			},
		})
		g.breakers[host] = cb
	}
	return cb
}
