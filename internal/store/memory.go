package store

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	counter   int64
	value     []byte
	expiresAt int64
}

func (e *memEntry) expired(now int64) bool {
	return e.expiresAt != 0 && e.expiresAt <= now
}

// Memory is an in-process Store. It is correct for a single process only;
// use SQLite when several workers share a quota.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	closed  bool
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry), now: time.Now}
}

// SetClock overrides the time source (tests).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// live returns the unexpired entry at key, dropping it if expired. Lock must be held.
func (m *Memory) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.expired(m.now().UnixNano()) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	e := m.live(key)
	if e == nil {
		e = &memEntry{expiresAt: expiry(m.now(), ttl)}
		m.entries[key] = e
	}
	e.counter += delta
	return e.counter, nil
}

func (m *Memory) Counter(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if e := m.live(key); e != nil {
		return e.counter, nil
	}
	return 0, nil
}

func (m *Memory) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	e := m.live(key)
	if e == nil || e.expiresAt == 0 {
		return 0, nil
	}
	return time.Duration(e.expiresAt - m.now().UnixNano()), nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	e := m.live(key)
	if e == nil || e.value == nil {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[key] = &memEntry{value: append([]byte(nil), value...), expiresAt: expiry(m.now(), ttl)}
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	var old []byte
	e := m.live(key)
	if e != nil {
		old = append([]byte(nil), e.value...)
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	if e == nil {
		e = &memEntry{expiresAt: expiry(m.now(), ttl)}
		m.entries[key] = e
	}
	e.value = append([]byte(nil), next...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*Memory)(nil)
