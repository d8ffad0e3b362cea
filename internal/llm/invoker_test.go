package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestInvoker(attempts int) (*Invoker, *recordingSleep) {
	rec := &recordingSleep{}
	inv := NewInvoker(Policy{
		Timeout:     time.Second,
		MaxAttempts: attempts,
		BackoffBase: 2 * time.Second,
		BackoffMax:  8 * time.Second,
	})
	inv.Sleep = rec.sleep
	return inv, rec
}

func TestInvokeRetriesTransientErrors(t *testing.T) {
	inv, rec := newTestInvoker(3)
	calls := 0
	raw, err := inv.Invoke(context.Background(), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Provider: "openai", StatusCode: http.StatusBadGateway}
		}
		return `{"ok":true}`, nil
	}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw != `{"ok":true}` {
		t.Fatalf("raw = %q", raw)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if fmt.Sprint(rec.delays) != fmt.Sprint(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
}

func TestInvokeTreatsAcceptFailureAsAttemptFailure(t *testing.T) {
	inv, _ := newTestInvoker(3)
	calls := 0
	outputs := []string{"not json", "still not", `{"qualityScore":85}`}
	raw, err := inv.Invoke(context.Background(), "test", func(ctx context.Context) (string, error) {
		out := outputs[calls]
		calls++
		return out, nil
	}, func(raw string) error {
		if raw[0] != '{' {
			return errors.New("parse failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls != 3 || raw != `{"qualityScore":85}` {
		t.Fatalf("calls=%d raw=%q", calls, raw)
	}
}

func TestInvokeReturnsLastErrorAfterExhaustion(t *testing.T) {
	inv, rec := newTestInvoker(3)
	calls := 0
	_, err := inv.Invoke(context.Background(), "analysis", func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("attempt %d: %w", calls, context.DeadlineExceeded)
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(rec.delays))
	}
}

func TestInvokeDoesNotRetryConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not configured", err: ErrNotConfigured},
		{name: "unauthorized", err: &StatusError{Provider: "openai", StatusCode: http.StatusUnauthorized}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			inv, _ := newTestInvoker(3)
			calls := 0
			_, err := inv.Invoke(context.Background(), "test", func(ctx context.Context) (string, error) {
				calls++
				return "", tt.err
			}, nil)
			if calls != 1 {
				t.Fatalf("calls = %d, want 1", calls)
			}
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestInvokeStopsOnParentCancel(t *testing.T) {
	inv, _ := newTestInvoker(3)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := inv.Invoke(ctx, "test", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("connection reset")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestInvokeAppliesPerAttemptTimeout(t *testing.T) {
	inv, _ := newTestInvoker(1)
	inv.Policy.Timeout = 20 * time.Millisecond
	_, err := inv.Invoke(context.Background(), "test", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPolicyBackoffCaps(t *testing.T) {
	p := Policy{BackoffBase: 3 * time.Second, BackoffMax: 10 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 3 * time.Second},
		{attempt: 1, want: 6 * time.Second},
		{attempt: 2, want: 10 * time.Second},
		{attempt: 7, want: 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Fatalf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryableStatusCodes(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{code: http.StatusBadRequest, want: false},
		{code: http.StatusNotFound, want: false},
		{code: http.StatusRequestTimeout, want: true},
		{code: http.StatusTooManyRequests, want: true},
		{code: http.StatusInternalServerError, want: true},
		{code: http.StatusServiceUnavailable, want: true},
	}
	for _, tt := range tests {
		err := fmt.Errorf("complete: %w", &StatusError{Provider: "openai", StatusCode: tt.code})
		if got := Retryable(err); got != tt.want {
			t.Fatalf("Retryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
