package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/infra/storage"
)

// SubscriptionRepo implements storage.SubscriptionRepository using PostgreSQL.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new PostgreSQL subscription repository.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// GetEntitlement returns the entitlement derived from the user's most
// recent subscription record.
func (r *SubscriptionRepo) GetEntitlement(
	ctx context.Context,
	userID string,
) (*domain.Entitlement, error) {
	query := `
		SELECT status, max_concurrent_sessions
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var dest struct {
		Status                string `db:"status"`
		MaxConcurrentSessions int    `db:"max_concurrent_sessions"`
	}

	if err := r.db.GetContext(ctx, &dest, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	maxSessions := dest.MaxConcurrentSessions
	if maxSessions < 1 {
		maxSessions = 1
	}

	return &domain.Entitlement{
		UserID:                userID,
		Active:                dest.Status == "active",
		MaxConcurrentSessions: maxSessions,
	}, nil
}
