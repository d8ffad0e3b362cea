package extract

import (
	"errors"
	"strings"

	"chart-qa-backend/internal/conversion"
	"chart-qa-backend/internal/llm"
)

var (
	// ErrInsufficientContent is returned when a method produced too little text to accept.
	ErrInsufficientContent = errors.New("insufficient content extracted")
	// ErrUnsupportedKind is returned when no chain handles the sniffed kind.
	ErrUnsupportedKind = errors.New("unsupported document kind")
	// ErrNoSource is returned when a source carries neither bytes nor a reference.
	ErrNoSource = errors.New("source has no bytes and no reference")
	// ErrFetchNotAllowed is returned when a source URL points at a host outside FetchAllowHosts.
	ErrFetchNotAllowed = errors.New("source host is not allowed")
	// ErrMethodUnavailable marks a method skipped because its service is not wired.
	ErrMethodUnavailable = errors.New("extraction method unavailable")
)

const maxAttemptCauseRunes = 120

// attemptError records why one method of a chain did not produce text.
type attemptError struct {
	Method string
	Err    error
}

// ChainError is returned when every method of a chain failed.
type ChainError struct {
	Chain    string
	Attempts []attemptError
}

func (e *ChainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Chain)
	b.WriteString(" extraction failed")
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(a.Method)
		b.WriteString(": ")
		b.WriteString(a.Err.Error())
	}
	return b.String()
}

// Summary lists the methods that ran and why each was rejected. Methods
// skipped as unavailable are left out.
func (e *ChainError) Summary() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if errors.Is(a.Err, ErrMethodUnavailable) {
			continue
		}
		parts = append(parts, a.Method+": "+truncateRunes(a.Err.Error(), maxAttemptCauseRunes))
	}
	return strings.Join(parts, "; ")
}

// withAttempts appends the chain summary to a caller-facing diagnostic.
func withAttempts(diagnostic string, chainErr *ChainError) string {
	summary := chainErr.Summary()
	if summary == "" {
		return diagnostic
	}
	return diagnostic + " (tried " + summary + ")"
}

func truncateRunes(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "..."
}

// Unwrap exposes attempt errors to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.Err)
	}
	return out
}

// IsConfigurationError reports whether err means a required service is not configured.
func IsConfigurationError(err error) bool {
	return errors.Is(err, llm.ErrNotConfigured) || errors.Is(err, conversion.ErrNotConfigured)
}
