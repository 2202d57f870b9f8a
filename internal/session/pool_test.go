package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/infra/browser"
	"github.com/applyflow/agent/internal/infra/storage/memory"
)

// =============================================================================
// Fake provisioner
// =============================================================================

type fakeProvisioner struct {
	mu      sync.Mutex
	created int
	fail    bool
}

func (p *fakeProvisioner) NewDriver(ctx context.Context, userID string) (browser.Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("browser grid unavailable")
	}
	p.created++
	return &fakeDriver{}, nil
}

func (p *fakeProvisioner) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

func newTestPool(cfg Config, prov *fakeProvisioner, store *memory.Storage) *Pool {
	return NewPool(cfg, prov, store, slog.Default())
}

func activeEntitlement(maxSessions int) domain.Entitlement {
	return domain.Entitlement{Active: true, MaxConcurrentSessions: maxSessions}
}

// =============================================================================
// Tests
// =============================================================================

func TestPool_AcquireReuseAfterRelease(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	prov := &fakeProvisioner{}
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour}, prov, store)
	defer pool.Shutdown()

	s1, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	pool.Release(s1)

	s2, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if s1 != s2 {
		t.Error("expected the registered session to be reused")
	}
	if prov.createdCount() != 1 {
		t.Errorf("expected 1 driver created, got %d", prov.createdCount())
	}
}

func TestPool_BusySessionDenied(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(5))
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour}, &fakeProvisioner{}, store)
	defer pool.Shutdown()

	s, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer pool.Release(s)

	_, err = pool.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}
	if !IsCapacityDenied(err) {
		t.Error("busy denial must be a capacity denial")
	}
}

func TestPool_GlobalCapDenied(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	store.SetEntitlement("user-2", activeEntitlement(1))
	store.SetEntitlement("user-3", activeEntitlement(1))
	pool := newTestPool(Config{MaxSessions: 2, IdleTimeout: time.Hour}, &fakeProvisioner{}, store)
	defer pool.Shutdown()

	for _, u := range []string{"user-1", "user-2"} {
		s, err := pool.Acquire(context.Background(), u)
		if err != nil {
			t.Fatalf("acquire %s failed: %v", u, err)
		}
		pool.Release(s)
	}

	_, err := pool.Acquire(context.Background(), "user-3")
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPool_NoEntitlement(t *testing.T) {
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour},
		&fakeProvisioner{}, memory.NewStorage())
	defer pool.Shutdown()

	_, err := pool.Acquire(context.Background(), "stranger")
	if !errors.Is(err, ErrNoEntitlement) {
		t.Errorf("expected ErrNoEntitlement, got %v", err)
	}
}

func TestPool_InactiveSubscription(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", domain.Entitlement{Active: false, MaxConcurrentSessions: 3})
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour}, &fakeProvisioner{}, store)
	defer pool.Shutdown()

	_, err := pool.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ErrNoEntitlement) {
		t.Errorf("expected ErrNoEntitlement, got %v", err)
	}
}

func TestPool_UserLimitZero(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", domain.Entitlement{Active: true, MaxConcurrentSessions: 0})
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour}, &fakeProvisioner{}, store)
	defer pool.Shutdown()

	_, err := pool.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ErrUserLimit) {
		t.Errorf("expected ErrUserLimit, got %v", err)
	}
}

func TestPool_ProvisioningFailure(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour},
		&fakeProvisioner{fail: true}, store)
	defer pool.Shutdown()

	_, err := pool.Acquire(context.Background(), "user-1")
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted on provisioning failure, got %v", err)
	}
	if pool.ActiveCount() != 0 {
		t.Errorf("expected no registered sessions, got %d", pool.ActiveCount())
	}
}

func TestPool_IdleEviction(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	prov := &fakeProvisioner{}
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: 10 * time.Millisecond}, prov, store)
	defer pool.Shutdown()

	s, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	pool.Release(s)

	time.Sleep(20 * time.Millisecond)
	pool.evictIdle()

	if pool.ActiveCount() != 0 {
		t.Fatalf("expected idle session evicted, have %d", pool.ActiveCount())
	}
	if s.Active() {
		t.Error("evicted session must be closed")
	}

	// A fresh acquire provisions a new session.
	s2, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire after eviction failed: %v", err)
	}
	if s2 == s {
		t.Error("expected a fresh session after eviction")
	}
	pool.Release(s2)
	if prov.createdCount() != 2 {
		t.Errorf("expected 2 drivers created, got %d", prov.createdCount())
	}
}

func TestPool_HeldSessionForceEvicted(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: 10 * time.Millisecond},
		&fakeProvisioner{}, store)
	defer pool.Shutdown()

	// Simulates a wedged workflow: the session stays held past the idle
	// timeout without touching the driver.
	s, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	pool.evictIdle()

	if pool.ActiveCount() != 0 {
		t.Error("timed-out held session must be deregistered")
	}
	if s.Active() {
		t.Error("timed-out held session must be force-closed")
	}

	// The wedged holder's release must still be safe, and the freed slot
	// must allow a fresh session.
	pool.Release(s)
	s2, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire after forced eviction failed: %v", err)
	}
	if s2 == s {
		t.Error("expected a fresh session after forced eviction")
	}
	pool.Release(s2)
}

func TestPool_Shutdown(t *testing.T) {
	store := memory.NewStorage()
	store.SetEntitlement("user-1", activeEntitlement(1))
	pool := newTestPool(Config{MaxSessions: 10, IdleTimeout: time.Hour}, &fakeProvisioner{}, store)

	s, err := pool.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	pool.Release(s)

	pool.Shutdown()
	pool.Shutdown() // idempotent

	if pool.ActiveCount() != 0 {
		t.Errorf("expected empty pool after shutdown, got %d", pool.ActiveCount())
	}
	if s.Active() {
		t.Error("sessions must be closed on shutdown")
	}
	if _, err := pool.Acquire(context.Background(), "user-1"); err == nil {
		t.Error("acquire after shutdown must fail")
	}
}

func TestPool_ConcurrentAcquire(t *testing.T) {
	store := memory.NewStorage()
	const users = 8
	for i := 0; i < users; i++ {
		store.SetEntitlement(fmt.Sprintf("user-%d", i), activeEntitlement(1))
	}
	pool := newTestPool(Config{MaxSessions: users, IdleTimeout: time.Hour},
		&fakeProvisioner{}, store)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	var held [users]int32

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := i % users
			s, err := pool.Acquire(context.Background(), fmt.Sprintf("user-%d", user))
			if err != nil {
				if !errors.Is(err, ErrSessionBusy) {
					t.Errorf("unexpected acquire error: %v", err)
				}
				return
			}
			if atomic.AddInt32(&held[user], 1) > 1 {
				t.Errorf("user-%d session held concurrently", user)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&held[user], -1)
			pool.Release(s)
		}(i)
	}
	wg.Wait()

	if pool.ActiveCount() > users {
		t.Errorf("registry exceeded one session per user: %d", pool.ActiveCount())
	}
}
