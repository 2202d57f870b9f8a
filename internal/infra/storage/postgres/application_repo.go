package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/applyflow/agent/internal/core/domain"
)

// ApplicationRepo implements storage.ApplicationRepository using PostgreSQL.
type ApplicationRepo struct {
	db *DB
}

// NewApplicationRepo creates a new PostgreSQL application repository.
func NewApplicationRepo(db *DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

// AppendStatusTransition records the status change in the history table and
// moves the application to the new status in one transaction.
func (r *ApplicationRepo) AppendStatusTransition(
	ctx context.Context,
	applicationID string,
	newStatus domain.ApplicationStatus,
	note string,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	historyQuery := `
		INSERT INTO application_status_history (application_id, old_status, new_status, note, created_at)
		SELECT id, status, $2, $3, NOW()
		FROM job_applications
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, historyQuery, applicationID, string(newStatus), note); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	updateQuery := `
		UPDATE job_applications
		SET status = $2, last_status_change = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery, applicationID, string(newStatus)); err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status transition: %w", err)
	}
	return nil
}

// MergeErrorDetail appends one error map to the details->errors array of the
// application record.
func (r *ApplicationRepo) MergeErrorDetail(
	ctx context.Context,
	applicationID string,
	detail map[string]any,
) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal error detail: %w", err)
	}

	query := `
		UPDATE job_applications
		SET details = jsonb_set(
				COALESCE(details, '{}'::jsonb),
				'{errors}',
				COALESCE(details->'errors', '[]'::jsonb) || jsonb_build_array($2::jsonb)
			),
			updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, applicationID, data); err != nil {
		return fmt.Errorf("failed to merge error detail: %w", err)
	}
	return nil
}
