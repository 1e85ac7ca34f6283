// Package upstream talks to the remote RC lookup service.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xaenox/rc-intel-bot/internal/metrics"
)

const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxAttempts = 3
	maxBodyBytes       = 1 << 20
	userAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// RetryPolicy bounds how a fetch is retried. Sleep is injectable so tests
// can observe the schedule without waiting.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// ExponentialBackoff returns base * 2^attempt for a zero-based attempt.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ExponentialBackoff(time.Second),
		Retryable:   IsTransient,
		Sleep:       SleepContext,
	}
}

type Config struct {
	Endpoint      string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables outbound rate limiting
	RateBurst     int
}

type Fetcher struct {
	client   *http.Client
	endpoint *url.URL
	timeout  time.Duration
	policy   RetryPolicy
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewFetcher(config Config, policy RetryPolicy, logger *zap.Logger, m *metrics.Metrics) (*Fetcher, error) {
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid lookup endpoint %q", config.Endpoint)
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Backoff == nil {
		policy.Backoff = ExponentialBackoff(time.Second)
	}
	if policy.Retryable == nil {
		policy.Retryable = IsTransient
	}
	if policy.Sleep == nil {
		policy.Sleep = SleepContext
	}

	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}

	return &Fetcher{
		client:   &http.Client{},
		endpoint: endpoint,
		timeout:  config.Timeout,
		policy:   policy,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

func (f *Fetcher) requestURL(id string) string {
	u := *f.endpoint
	q := u.Query()
	q.Set("rc", id)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch retrieves the raw JSON payload for id. Only transient failures are
// retried; every failure is returned as *Error.
func (f *Fetcher) Fetch(ctx context.Context, id string) (any, error) {
	var lastErr *Error

	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.policy.Backoff(attempt - 1)
			f.logger.Warn("Retrying lookup",
				zap.String("rc_number", id),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.String("last_error", string(lastErr.Kind)))
			if err := f.policy.Sleep(ctx, delay); err != nil {
				return nil, &Error{Kind: KindUnexpected, Attempts: attempt, Err: err}
			}
		}

		f.logger.Info("Querying lookup API",
			zap.String("rc_number", id),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.policy.MaxAttempts))

		payload, err := f.attempt(ctx, id)
		if err == nil {
			return payload, nil
		}

		err.Attempts = attempt + 1
		lastErr = err
		if !f.policy.Retryable(err) {
			break
		}
	}

	f.logger.Warn("Lookup failed",
		zap.String("rc_number", id),
		zap.Int("attempts", lastErr.Attempts),
		zap.Error(lastErr))
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, id string) (any, *Error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindUnexpected, Message: "rate limiter", Err: err}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, f.requestURL(id), nil)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		uerr := classifyTransportError(ctx, err)
		f.metrics.ObserveUpstreamAttempt(string(uerr.Kind), time.Since(start))
		return nil, uerr
	}
	defer resp.Body.Close()

	payload, uerr := f.decode(ctx, resp)
	outcome := "ok"
	if uerr != nil {
		outcome = string(uerr.Kind)
	}
	f.metrics.ObserveUpstreamAttempt(outcome, time.Since(start))
	return payload, uerr
}

func (f *Fetcher) decode(ctx context.Context, resp *http.Response) (any, *Error) {
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode, Message: "vehicle not found"}
	case http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, Status: resp.StatusCode, Message: "rate limit exceeded"}
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode}
	}

	var payload any
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		if isTimeout(err) {
			return nil, classifyTransportError(ctx, err)
		}
		return nil, &Error{Kind: KindUnexpected, Message: "invalid JSON response", Err: err}
	}

	if obj, ok := payload.(map[string]any); ok {
		if msg := remoteError(obj["error"]); msg != "" {
			return nil, &Error{Kind: KindRemote, Message: msg}
		}
	}
	return payload, nil
}

func remoteError(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case bool:
		if e {
			return "lookup service reported an error"
		}
		return ""
	default:
		return fmt.Sprint(e)
	}
}

func classifyTransportError(parent context.Context, err error) *Error {
	if parent.Err() != nil {
		return &Error{Kind: KindUnexpected, Message: "request cancelled", Err: parent.Err()}
	}
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Message: "lookup service is unresponsive", Err: err}
	}
	return &Error{Kind: KindConnection, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
