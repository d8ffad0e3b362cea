package lock

import (
	"context"
	"sync"
)

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker guards "at most one in-flight pipeline per key" without blocking.
type Locker interface {
	// TryLock returns ok=false when key is already held.
	TryLock(ctx context.Context, key string) (release Release, ok bool, err error)
}

// Memory is an in-process keyed lock.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory constructs an in-process Locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

// TryLock implements Locker.
func (m *Memory) TryLock(ctx context.Context, key string) (Release, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return nil, false, nil
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, true, nil
}

var _ Locker = (*Memory)(nil)
