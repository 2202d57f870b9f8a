package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/applyflow/agent/internal/infra/browser"
	"github.com/applyflow/agent/internal/infra/storage"
	"github.com/applyflow/agent/internal/metrics"
)

// Capacity denials. These are expected outcomes of Acquire, not faults:
// callers surface them to the requester instead of classifying them.
var (
	ErrPoolExhausted = errors.New("session: pool exhausted")
	ErrNoEntitlement = errors.New("session: no active entitlement")
	ErrUserLimit     = errors.New("session: user session limit reached")
	ErrSessionBusy   = errors.New("session: session busy")

	errPoolClosed = errors.New("session: pool closed")
)

// IsCapacityDenied reports whether err is one of the expected Acquire
// denials rather than a fault.
func IsCapacityDenied(err error) bool {
	return errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrNoEntitlement) ||
		errors.Is(err, ErrUserLimit) ||
		errors.Is(err, ErrSessionBusy)
}

// Config holds session pool configuration.
type Config struct {
	MaxSessions   int
	IdleTimeout   time.Duration
	EvictInterval time.Duration
}

// Pool owns every live browser session. The registry holds at most one
// session per user; global capacity is bounded by MaxSessions.
type Pool struct {
	cfg         Config
	provisioner browser.Provisioner
	subs        storage.SubscriptionRepository
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewPool creates a session pool. Start must be called to enable idle
// eviction.
func NewPool(
	cfg Config,
	provisioner browser.Provisioner,
	subs storage.SubscriptionRepository,
	log *slog.Logger,
) *Pool {
	return &Pool{
		cfg:         cfg,
		provisioner: provisioner,
		subs:        subs,
		log:         log,
		sessions:    make(map[string]*Session),
	}
}

// Acquire returns an exclusively held session for the user, reusing the
// registered one when possible and provisioning otherwise. Callers must
// Release the session when the unit of work finishes.
//
// The pool lock is never held across entitlement lookups or browser
// provisioning; capacity is re-validated after those complete.
func (p *Pool) Acquire(ctx context.Context, userID string) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPoolClosed
	}
	if existing, ok := p.sessions[userID]; ok {
		p.mu.Unlock()
		if existing.TryAcquire() {
			return existing, nil
		}
		metrics.AcquireDenied.WithLabelValues("session_busy").Inc()
		return nil, ErrSessionBusy
	}
	if len(p.sessions) >= p.cfg.MaxSessions {
		p.mu.Unlock()
		metrics.AcquireDenied.WithLabelValues("pool_exhausted").Inc()
		return nil, ErrPoolExhausted
	}
	p.mu.Unlock()

	ent, err := p.subs.GetEntitlement(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.AcquireDenied.WithLabelValues("no_entitlement").Inc()
			return nil, ErrNoEntitlement
		}
		return nil, fmt.Errorf("failed to look up entitlement: %w", err)
	}
	if !ent.Active {
		metrics.AcquireDenied.WithLabelValues("no_entitlement").Inc()
		return nil, ErrNoEntitlement
	}
	if ent.MaxConcurrentSessions < 1 {
		metrics.AcquireDenied.WithLabelValues("user_limit").Inc()
		return nil, ErrUserLimit
	}

	drv, err := p.provisioner.NewDriver(ctx, userID)
	if err != nil {
		metrics.AcquireDenied.WithLabelValues("provision_failed").Inc()
		return nil, fmt.Errorf("%w: provisioning failed: %v", ErrPoolExhausted, err)
	}

	s := newSession(userID, drv)
	s.TryAcquire() // fresh session, never contended

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = s.Close()
		return nil, errPoolClosed
	}
	if racing, ok := p.sessions[userID]; ok {
		// Another Acquire registered a session for this user while we
		// were provisioning. Keep the registered one.
		p.mu.Unlock()
		_ = s.Close()
		if racing.TryAcquire() {
			return racing, nil
		}
		metrics.AcquireDenied.WithLabelValues("session_busy").Inc()
		return nil, ErrSessionBusy
	}
	if len(p.sessions) >= p.cfg.MaxSessions {
		p.mu.Unlock()
		_ = s.Close()
		metrics.AcquireDenied.WithLabelValues("pool_exhausted").Inc()
		return nil, ErrPoolExhausted
	}
	p.sessions[userID] = s
	p.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	p.log.Info("session created", "user_id", userID)
	return s, nil
}

// Release returns an acquired session to the pool.
func (p *Pool) Release(s *Session) {
	s.Release()
}

// CloseSession force-closes and deregisters the user's session, if any.
func (p *Pool) CloseSession(userID string) error {
	p.mu.Lock()
	s, ok := p.sessions[userID]
	if ok {
		delete(p.sessions, userID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	metrics.SessionsActive.Dec()
	p.log.Info("session closed", "user_id", userID)
	return s.Close()
}

// ActiveCount returns the number of registered sessions.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Start runs the idle eviction loop until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

// evictIdle closes sessions whose last acquisition is older than
// IdleTimeout. A session still held past the timeout is force-closed; the
// holder's next driver call fails with ErrDriverClosed.
func (p *Pool) evictIdle() {
	now := time.Now()

	p.mu.Lock()
	var expired []*Session
	for userID, s := range p.sessions {
		if now.Sub(s.LastUsed()) < p.cfg.IdleTimeout {
			continue
		}
		delete(p.sessions, userID)
		expired = append(expired, s)
	}
	p.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			p.log.Warn("failed to close idle session",
				"user_id", s.UserID, "error", err)
		}
		metrics.SessionsActive.Dec()
		metrics.SessionsEvicted.Inc()
		p.log.Info("idle session evicted", "user_id", s.UserID)
	}
}

// Shutdown closes every session and rejects further Acquire calls.
// It is idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	all := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		all = append(all, s)
	}
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	for _, s := range all {
		if err := s.Close(); err != nil {
			p.log.Warn("failed to close session during shutdown",
				"user_id", s.UserID, "error", err)
		}
	}
	metrics.SessionsActive.Set(0)
	p.log.Info("session pool shut down", "closed", len(all))
}
