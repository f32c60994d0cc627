package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/cfpboard/pkg/metrics"
)

// Middleware decorates a Client.
type Middleware func(Client) Client

// Chain applies mws so that mws[0] is the outermost wrapper.
func Chain(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

type wrapped struct {
	next Client
}

func (w wrapped) Provider() string { return w.next.Provider() }
func (w wrapped) Model() string    { return w.next.Model() }

type rateLimited struct {
	wrapped
	limiter *rate.Limiter
}

// RateLimitMiddleware blocks each request until the token bucket allows it.
// A non-positive limit disables limiting.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	return func(next Client) Client {
		return &rateLimited{wrapped: wrapped{next}, limiter: limiter}
	}
}

func (r *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Complete(ctx, req)
}

type timed struct {
	wrapped
	timeout time.Duration
}

// TimeoutMiddleware bounds every request by d.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Client) Client {
		return &timed{wrapped: wrapped{next}, timeout: d}
	}
}

func (t *timed) Complete(ctx context.Context, req Request) (string, error) {
	if t.timeout <= 0 {
		return t.next.Complete(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}

type measured struct {
	wrapped
}

// MetricsMiddleware records request count and latency per provider.
func MetricsMiddleware() Middleware {
	return func(next Client) Client {
		return &measured{wrapped{next}}
	}
}

func (m *measured) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordLLMRequest(m.Provider(), outcome, float64(time.Since(start).Milliseconds()))
	return out, err
}
