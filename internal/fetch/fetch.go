// Package fetch implements the rate-limited, circuit-broken HTTP fetcher
// of spec.md §4.A: one instance per upstream price provider, a token
// bucket sized to 90% of the provider's documented budget, a single
// reused connection pool, and bounded retries.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/calltrack/internal/config"
)

// ErrorKind is the ProviderError taxonomy of spec.md §4.A/§7.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "Timeout"
	KindRateLimited ErrorKind = "RateLimited"
	KindNotFound    ErrorKind = "NotFound"
	KindAuth        ErrorKind = "Auth"
	KindParse       ErrorKind = "Parse"
	KindTransport   ErrorKind = "Transport"
)

// ProviderError is what Fetcher.Do returns on failure. The price service's
// sources pass it up unchanged; the service treats any source error as a
// cue to try the next provider in the chain and wraps the last one as the
// Cause of its own Error.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	RetryAfter time.Duration
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch[%s]: %s: %v", e.Provider, e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetch[%s]: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Request is a minimal, provider-agnostic HTTP request description.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Response is the raw body plus status for the caller to decode.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Fetcher is one rate-limited, circuit-broken client for a single
// provider. A persistent *http.Client (and its Transport) is reused across
// every call — spec.md §4.A: "a single persistent connection pool is
// reused."
type Fetcher struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	cfg      config.ProviderConfig
}

// New builds a Fetcher sized to 90% of the provider's documented
// requests-per-minute budget.
func New(cfg config.ProviderConfig) *Fetcher {
	budgetPerSecond := float64(cfg.RPM) / 60.0 * 0.9
	if budgetPerSecond <= 0 {
		budgetPerSecond = 1
	}
	burst := cfg.RPM / 6
	if burst < 1 {
		burst = 1
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
	}

	return &Fetcher{
		provider: cfg.Name,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(budgetPerSecond), burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		cfg:     cfg,
	}
}

// Do issues one request, gated by the provider's rate limiter and circuit
// breaker, retrying only on Transport and RateLimited per spec.md §4.A.
// Concurrent calls on one Fetcher are not serialized: each waits for a
// limiter token and then runs independently. The context deadline governs
// both the rate-limiter wait and the total retry budget.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.backoff(attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &ProviderError{Provider: f.provider, Kind: KindTimeout, Cause: ctx.Err()}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: f.provider, Kind: KindTimeout, Cause: err}
		}

		resp, err := f.breaker.Execute(func() (interface{}, error) {
			return f.doOnce(ctx, req)
		})

		if err == nil {
			return resp.(*Response), nil
		}

		perr, ok := err.(*ProviderError)
		if !ok {
			return nil, &ProviderError{Provider: f.provider, Kind: KindTransport, Cause: err}
		}

		lastErr = perr
		if perr.Kind == KindTransport {
			continue
		}
		if perr.Kind == KindRateLimited {
			if perr.RetryAfter > 0 {
				select {
				case <-time.After(perr.RetryAfter):
				case <-ctx.Done():
					return nil, &ProviderError{Provider: f.provider, Kind: KindTimeout, Cause: ctx.Err()}
				}
			}
			continue
		}
		// NotFound, Auth, Parse never retry.
		return nil, perr
	}

	log.Warn().Str("provider", f.provider).Int("attempts", f.cfg.MaxRetries+1).
		Msg("fetch exhausted retries")
	return nil, lastErr
}

func (f *Fetcher) doOnce(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: f.provider, Kind: KindTransport, Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: f.provider, Kind: KindTransport, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: f.provider, Kind: KindParse, Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ProviderError{Provider: f.provider, Kind: KindRateLimited, RetryAfter: retryAfter(resp.Header)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ProviderError{Provider: f.provider, Kind: KindNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ProviderError{Provider: f.provider, Kind: KindAuth}
	case resp.StatusCode >= 500:
		return nil, &ProviderError{Provider: f.provider, Kind: KindTransport, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &ProviderError{Provider: f.provider, Kind: KindParse, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

// backoff computes exponential backoff with base 1s, cap 30s, ±50% jitter —
// spec.md §4.A.
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	cap := f.cfg.BackoffCap
	if cap <= 0 {
		cap = 30 * time.Second
	}

	d := base << uint(attempt-1)
	if d > cap || d <= 0 {
		d = cap
	}

	jitterFrac := (rand.Float64()*2 - 1) * 0.5 // ±50%
	jittered := time.Duration(float64(d) * (1 + jitterFrac))
	if jittered < 0 {
		jittered = 0
	}
	return jittered
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v + "s"); err == nil {
		return d
	}
	return 0
}
