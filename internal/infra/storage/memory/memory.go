package memory

import (
	"context"
	"sync"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/infra/storage"
)

// Storage is an in-memory implementation of the storage repositories,
// used when no database is configured and throughout the test suites.
type Storage struct {
	mu            sync.RWMutex
	entitlements  map[string]domain.Entitlement
	cookies       map[string][]domain.Cookie
	authenticated map[string]bool
	transitions   map[string][]StatusTransition
	details       map[string][]map[string]any
}

// StatusTransition is one recorded status change for an application.
type StatusTransition struct {
	Status domain.ApplicationStatus
	Note   string
	At     time.Time
}

func NewStorage() *Storage {
	return &Storage{
		entitlements:  make(map[string]domain.Entitlement),
		cookies:       make(map[string][]domain.Cookie),
		authenticated: make(map[string]bool),
		transitions:   make(map[string][]StatusTransition),
		details:       make(map[string][]map[string]any),
	}
}

// SetEntitlement seeds an entitlement record.
func (s *Storage) SetEntitlement(userID string, ent domain.Entitlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent.UserID = userID
	s.entitlements[userID] = ent
}

func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entitlements[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := ent
	return &out, nil
}

func (s *Storage) AppendStatusTransition(
	ctx context.Context,
	applicationID string,
	newStatus domain.ApplicationStatus,
	note string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[applicationID] = append(s.transitions[applicationID], StatusTransition{
		Status: newStatus,
		Note:   note,
		At:     time.Now(),
	})
	return nil
}

func (s *Storage) MergeErrorDetail(
	ctx context.Context,
	applicationID string,
	detail map[string]any,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[applicationID] = append(s.details[applicationID], detail)
	return nil
}

// Transitions returns the recorded transitions for an application.
func (s *Storage) Transitions(applicationID string) []StatusTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusTransition, len(s.transitions[applicationID]))
	copy(out, s.transitions[applicationID])
	return out
}

// ErrorDetails returns the merged error detail maps for an application.
func (s *Storage) ErrorDetails(applicationID string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, len(s.details[applicationID]))
	copy(out, s.details[applicationID])
	return out
}

func (s *Storage) LoadCookies(ctx context.Context, userID string) ([]domain.Cookie, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.cookies[userID]
	if !ok {
		return nil, false, nil
	}
	out := make([]domain.Cookie, len(blob))
	copy(out, blob)
	return out, true, nil
}

func (s *Storage) SaveCookies(ctx context.Context, userID string, cookies []domain.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := make([]domain.Cookie, len(cookies))
	copy(blob, cookies)
	s.cookies[userID] = blob
	return nil
}

func (s *Storage) SetAuthenticated(ctx context.Context, userID string, authenticated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated[userID] = authenticated
	return nil
}

// Authenticated reports the stored authenticated flag for a user.
func (s *Storage) Authenticated(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated[userID]
}
