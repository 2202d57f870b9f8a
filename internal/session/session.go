package session

import (
	"sync"
	"time"

	"github.com/applyflow/agent/internal/infra/browser"
)

// Session binds one user to one live browser driver. A session is used by at
// most one workflow at a time; usage is serialized by TryAcquire/Release.
type Session struct {
	UserID string

	drv       browser.Driver
	createdAt time.Time

	// lock serializes workflow usage. It is taken non-blocking only.
	lock sync.Mutex

	// mu guards lastUsed and active.
	mu       sync.Mutex
	lastUsed time.Time
	active   bool
}

func newSession(userID string, drv browser.Driver) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		drv:       drv,
		createdAt: now,
		lastUsed:  now,
		active:    true,
	}
}

// TryAcquire attempts to take exclusive use of the session without blocking.
// It fails when the session is busy or already closed. On success the idle
// clock is reset and the caller must Release when done.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return false
	}

	if !s.lock.TryLock() {
		return false
	}

	// The session may have been closed between the check and the lock.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		s.lock.Unlock()
		return false
	}
	s.lastUsed = time.Now()
	return true
}

// Release returns the session to the pool. The idle clock advances only on
// successful acquisition, never here. Calling Release without a matching
// successful TryAcquire is a caller bug.
func (s *Session) Release() {
	s.lock.Unlock()
}

// Close marks the session inactive and tears down the driver. Safe to call
// while the usage lock is held by the closer, and safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	return s.drv.Close()
}

// Active reports whether the session has not been closed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LastUsed returns the time of the last successful acquisition.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Driver exposes the underlying browser driver. Only the holder of a
// successful TryAcquire may use it.
func (s *Session) Driver() browser.Driver {
	return s.drv
}
