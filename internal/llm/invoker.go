package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chart-qa-backend/internal/shared/metrics"
	"chart-qa-backend/internal/shared/telemetry"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 8 * time.Second
	defaultCallTimeout = 90 * time.Second
)

// Policy bounds one logical inference call.
type Policy struct {
	// Timeout applies to each attempt separately.
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultPolicy returns three attempts, 2s exponential backoff capped at 8s and a 90s per-attempt timeout.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     defaultCallTimeout,
		MaxAttempts: defaultMaxAttempts,
		BackoffBase: defaultBackoffBase,
		BackoffMax:  defaultBackoffMax,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BackoffBase < 0 {
		p.BackoffBase = 0
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = def.BackoffMax
	}
	return p
}

// Backoff returns the delay to wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}

// Call performs one attempt. The context carries the per-attempt deadline.
type Call func(ctx context.Context) (string, error)

// Accept validates raw output. A non-nil error fails the attempt and triggers a retry.
type Accept func(raw string) error

// Invoker is the shared retrying wrapper around every inference call.
type Invoker struct {
	Policy Policy
	// Sleep waits between attempts; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker returns an Invoker using the given policy and a real timer.
func NewInvoker(p Policy) *Invoker {
	return &Invoker{Policy: p.withDefaults(), Sleep: sleepCtx}
}

// Invoke runs call until accept passes or the attempts are used up.
// An attempt only succeeds once its output has been accepted.
func (inv *Invoker) Invoke(ctx context.Context, label string, call Call, accept Accept) (string, error) {
	policy := DefaultPolicy()
	sleep := sleepCtx
	if inv != nil {
		policy = inv.Policy.withDefaults()
		if inv.Sleep != nil {
			sleep = inv.Sleep
		}
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 0 {
			metrics.IncInferenceRetry()
			if err := sleep(ctx, policy.Backoff(attempt-1)); err != nil {
				return "", err
			}
		}

		raw, err := runAttempt(ctx, policy.Timeout, call)
		if err == nil && accept != nil {
			if acceptErr := accept(raw); acceptErr != nil {
				err = acceptErr
			}
		}
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !Retryable(err) {
			return "", err
		}
		telemetry.Warn("inference_attempt_failed", map[string]any{
			"call":         label,
			"attempt":      attempt + 1,
			"max_attempts": policy.MaxAttempts,
			"error":        err.Error(),
		})
	}
	return "", fmt.Errorf("%s: %d attempts failed: %w", label, policy.MaxAttempts, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, call Call) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(attemptCtx)
}

// Retryable reports whether an attempt error may succeed when tried again.
// Configuration errors and client errors other than 408/429 never are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

// Is lets credential rejections match ErrNotConfigured.
func (e *StatusError) Is(target error) bool {
	if target != ErrNotConfigured {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
