package control

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/infra/browser"
	"github.com/applyflow/agent/internal/infra/storage"
	"github.com/applyflow/agent/internal/metrics"
	"github.com/applyflow/agent/internal/recovery"
	"github.com/applyflow/agent/internal/session"
)

// Workflow is one unit of automated work against a held browser driver.
type Workflow func(ctx context.Context, drv browser.Driver) error

// SessionSource hands out exclusively held sessions.
type SessionSource interface {
	Acquire(ctx context.Context, userID string) (*session.Session, error)
	Release(s *session.Session)
}

// LoginEnsurer brings a driver into a logged-in state for a user.
type LoginEnsurer interface {
	EnsureLoggedIn(ctx context.Context, drv browser.Driver, userID string) error
}

// Runner executes workflows with fault capture, retry, and status
// persistence around each run.
type Runner struct {
	sessions      SessionSource
	login         LoginEnsurer
	apps          storage.ApplicationRepository
	policy        recovery.Policy
	screenshotDir string
	log           *slog.Logger
}

// NewRunner creates a workflow runner.
func NewRunner(
	sessions SessionSource,
	login LoginEnsurer,
	apps storage.ApplicationRepository,
	policy recovery.Policy,
	screenshotDir string,
	log *slog.Logger,
) *Runner {
	return &Runner{
		sessions:      sessions,
		login:         login,
		apps:          apps,
		policy:        policy,
		screenshotDir: screenshotDir,
		log:           log,
	}
}

// Run executes the workflow for one job application. The whole workflow is
// the retry unit: a retried run starts over from the beginning.
//
// Capacity denials from the session pool are returned unclassified; every
// other failure is captured, persisted onto the application record and
// retried per policy.
func (r *Runner) Run(
	ctx context.Context,
	userID string,
	applicationID string,
	wf Workflow,
) error {
	sess, err := r.sessions.Acquire(ctx, userID)
	if err != nil {
		if session.IsCapacityDenied(err) {
			return err
		}
		return fmt.Errorf("failed to acquire session: %w", err)
	}
	defer r.sessions.Release(sess)

	drv := sess.Driver()
	handler := recovery.NewHandler(r.policy, r.log, r.screenshotFunc(drv, userID))
	defer r.persistSummary(applicationID, handler)

	if err := r.login.EnsureLoggedIn(ctx, drv, userID); err != nil {
		record := handler.Capture(err, map[string]any{
			"user_id":        userID,
			"application_id": applicationID,
			"stage":          "authentication",
		})
		r.persistFailure(applicationID, record)
		return fmt.Errorf("authentication failed: %w", err)
	}

	retryCount := 0
	for {
		err := wf(ctx, drv)
		if err == nil {
			return nil
		}

		record := handler.Capture(err, map[string]any{
			"user_id":        userID,
			"application_id": applicationID,
			"retry_count":    retryCount,
		})

		if !handler.ShouldRetry(record, retryCount) {
			r.persistFailure(applicationID, record)
			return fmt.Errorf("workflow failed: %w", err)
		}

		delay := handler.RetryDelay(retryCount)
		retryCount++
		metrics.RetriesTotal.Inc()
		r.log.Info("retrying workflow",
			"application_id", applicationID,
			"retry", retryCount,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// persistFailure moves the application record to a terminal failure status
// and attaches the error detail. Persistence errors are logged, never
// returned; the original fault stays the primary outcome.
func (r *Runner) persistFailure(applicationID string, record *domain.JobError) {
	status := domain.ApplicationStatusError
	if record.Severity == domain.SeverityFatal {
		status = domain.ApplicationStatusFailed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.apps.AppendStatusTransition(ctx, applicationID, status, record.Message); err != nil {
		r.log.Error("failed to persist status transition",
			"application_id", applicationID, "error", err)
	}
	if err := r.apps.MergeErrorDetail(ctx, applicationID, record.AsMap()); err != nil {
		r.log.Error("failed to persist error detail",
			"application_id", applicationID, "error", err)
	}
}

// persistSummary attaches the aggregated error history to the application
// record when the run captured anything.
func (r *Runner) persistSummary(applicationID string, handler *recovery.Handler) {
	summary := handler.Summary()
	if summary.Count == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.apps.MergeErrorDetail(ctx, applicationID, summary.AsMap()); err != nil {
		r.log.Error("failed to persist error summary",
			"application_id", applicationID, "error", err)
	}
}

func (r *Runner) screenshotFunc(drv browser.Driver, userID string) recovery.ScreenshotFunc {
	if r.screenshotDir == "" {
		return nil
	}
	return func() (string, error) {
		dir := filepath.Join(r.screenshotDir, userID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create screenshot dir: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("error_%d.png", time.Now().UnixNano()))
		if err := drv.Screenshot(path); err != nil {
			return "", err
		}
		return path, nil
	}
}
