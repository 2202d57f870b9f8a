package storage

import (
	"context"
	"errors"

	"github.com/applyflow/agent/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("storage: not found")
)

// SubscriptionRepository exposes subscription-derived entitlements.
type SubscriptionRepository interface {
	// GetEntitlement returns the entitlement for a user, or ErrNotFound
	// when the user has no subscription record at all.
	GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
}

// ApplicationRepository persists job-application state transitions and
// diagnostic detail. The rest of the record is owned by the API layer.
type ApplicationRepository interface {
	// AppendStatusTransition records a status change with an audit entry.
	AppendStatusTransition(
		ctx context.Context,
		applicationID string,
		newStatus domain.ApplicationStatus,
		note string,
	) error

	// MergeErrorDetail appends a classified-error map into the
	// application's open details document.
	MergeErrorDetail(ctx context.Context, applicationID string, detail map[string]any) error
}

// CredentialStore persists the per-user cookie blob and authenticated flag.
type CredentialStore interface {
	// LoadCookies returns the stored cookie blob and whether one exists.
	LoadCookies(ctx context.Context, userID string) ([]domain.Cookie, bool, error)

	// SaveCookies stores the cookie blob, replacing any previous one.
	SaveCookies(ctx context.Context, userID string, cookies []domain.Cookie) error

	// SetAuthenticated flips the user's authenticated flag.
	SetAuthenticated(ctx context.Context, userID string, authenticated bool) error
}
