package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storeCase struct {
	s     Store
	clock *fakeClock
}

// stores returns every implementation, each wired to its own fake clock.
func stores(t *testing.T) map[string]storeCase {
	t.Helper()

	memClock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mem := NewMemory()
	mem.SetClock(memClock.Now)

	sqlClock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	db.SetClock(sqlClock.Now)
	t.Cleanup(func() { db.Close() })

	return map[string]storeCase{
		"memory": {mem, memClock},
		"sqlite": {db, sqlClock},
	}
}

func TestStore_Counters(t *testing.T) {
	for name, tc := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := tc.s

			for i := int64(1); i <= 3; i++ {
				v, err := s.IncrBy(ctx, "req", 1, time.Minute)
				if err != nil {
					t.Fatalf("IncrBy() error = %v", err)
				}
				if v != i {
					t.Errorf("IncrBy() = %d, want %d", v, i)
				}
			}
			if v, _ := s.IncrBy(ctx, "req", -2, time.Minute); v != 1 {
				t.Errorf("IncrBy(-2) = %d, want 1", v)
			}

			ttl, _ := s.TTL(ctx, "req")
			if ttl <= 0 || ttl > time.Minute {
				t.Errorf("TTL() = %v", ttl)
			}

			tc.clock.Advance(61 * time.Second)
			if v, _ := s.Counter(ctx, "req"); v != 0 {
				t.Errorf("Counter() after expiry = %d, want 0", v)
			}
			if v, _ := s.IncrBy(ctx, "req", 5, time.Minute); v != 5 {
				t.Errorf("IncrBy() after expiry = %d, want 5", v)
			}

			if err := s.Delete(ctx, "req", "missing"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if v, _ := s.Counter(ctx, "req"); v != 0 {
				t.Errorf("Counter() after delete = %d", v)
			}
		})
	}
}

func TestStore_Blobs(t *testing.T) {
	for name, tc := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := tc.s

			if _, ok, _ := s.Get(ctx, "blob"); ok {
				t.Fatal("expected missing blob")
			}
			if err := s.Set(ctx, "blob", []byte("one"), time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			err := s.Update(ctx, "blob", time.Hour, func(old []byte) ([]byte, error) {
				return append(old, []byte("+two")...), nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			v, ok, _ := s.Get(ctx, "blob")
			if !ok || string(v) != "one+two" {
				t.Errorf("Get() = %q, %v", v, ok)
			}

			sentinel := errors.New("abort")
			err = s.Update(ctx, "blob", time.Hour, func(old []byte) ([]byte, error) {
				return nil, sentinel
			})
			if !errors.Is(err, sentinel) {
				t.Errorf("Update() error = %v, want sentinel", err)
			}
			if v, _, _ := s.Get(ctx, "blob"); string(v) != "one+two" {
				t.Errorf("value changed after aborted update: %q", v)
			}

			tc.clock.Advance(2 * time.Hour)
			if _, ok, _ := s.Get(ctx, "blob"); ok {
				t.Error("expected blob to expire")
			}
			err = s.Update(ctx, "blob", time.Hour, func(old []byte) ([]byte, error) {
				if old != nil {
					t.Errorf("old = %q, want nil after expiry", old)
				}
				return []byte("fresh"), nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		})
	}
}

func TestSQLite_ConcurrentIncrements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			if _, err := s.IncrBy(ctx, "shared", 1, time.Minute); err != nil {
				t.Errorf("IncrBy() error = %v", err)
			}
		}([]Store{a, b}[i%2])
	}
	wg.Wait()

	if v, _ := a.Counter(ctx, "shared"); v != 50 {
		t.Errorf("Counter() = %d, want 50", v)
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	m.Close()
	if _, err := m.IncrBy(context.Background(), "k", 1, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("IncrBy() after close error = %v", err)
	}
}
