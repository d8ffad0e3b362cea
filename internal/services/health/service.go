package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Check verifies one dependency.
type Check func(ctx context.Context) error

// Service runs readiness checks against registered dependencies.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Check
	Timeout time.Duration
}

// NewService constructs a health service with no checks.
func NewService() *Service {
	return &Service{checks: make(map[string]Check), Timeout: defaultCheckTimeout}
}

// Register adds a named check. A nil check is ignored.
func (s *Service) Register(name string, check Check) {
	if check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Report is the readiness payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status runs every check concurrently and reports "ok" or the error message per dependency.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := check(ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	rep := Report{OK: true}
	if len(names) > 0 {
		rep.Checks = make(map[string]string, len(names))
	}
	for i, name := range names {
		rep.Checks[name] = results[i]
		if results[i] != "ok" {
			rep.OK = false
		}
	}
	return rep
}
