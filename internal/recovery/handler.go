package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/metrics"
)

// ScreenshotFunc captures a diagnostic screenshot and returns its path.
// A nil func disables screenshot capture for the handler.
type ScreenshotFunc func() (string, error)

// Handler accumulates the classified error history of one unit of work.
// It is created per run and must not be shared across runs.
type Handler struct {
	policy     Policy
	log        *slog.Logger
	screenshot ScreenshotFunc

	mu     sync.Mutex
	errors []*domain.JobError
}

// NewHandler creates a recovery handler for a single unit of work.
func NewHandler(policy Policy, log *slog.Logger, screenshot ScreenshotFunc) *Handler {
	return &Handler{
		policy:     policy,
		log:        log,
		screenshot: screenshot,
	}
}

// Capture classifies the error, captures diagnostics, records the result in
// the run history and returns the record. The original error is never
// swallowed; callers keep it for wrapping.
func (h *Handler) Capture(err error, context map[string]any) *domain.JobError {
	severity, category, message := Classify(err)

	record := &domain.JobError{
		ID:        uuid.NewString(),
		CauseType: fmt.Sprintf("%T", err),
		Cause:     err.Error(),
		Severity:  severity,
		Category:  category,
		Message:   message,
		Context:   context,
		Stack:     string(debug.Stack()),
		Timestamp: time.Now(),
	}

	if h.screenshot != nil {
		path, shotErr := h.screenshot()
		if shotErr != nil {
			h.log.Warn("screenshot capture failed", "error", shotErr)
		} else {
			record.ScreenshotPath = path
		}
	}

	h.log.Error("fault captured",
		"error_id", record.ID,
		"severity", record.Severity.String(),
		"category", string(record.Category),
		"message", record.Message,
		"cause", record.Cause)
	metrics.ErrorsClassified.WithLabelValues(
		record.Severity.String(), string(record.Category)).Inc()

	h.mu.Lock()
	h.errors = append(h.errors, record)
	h.mu.Unlock()

	return record
}

// ShouldRetry applies the retry policy to a captured record.
func (h *Handler) ShouldRetry(e *domain.JobError, retryCount int) bool {
	return h.policy.ShouldRetry(e, retryCount)
}

// RetryDelay returns the backoff after retryCount completed retries.
func (h *Handler) RetryDelay(retryCount int) time.Duration {
	return h.policy.NextDelay(retryCount)
}

// Errors returns a copy of the captured history in capture order.
func (h *Handler) Errors() []*domain.JobError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*domain.JobError, len(h.errors))
	copy(out, h.errors)
	return out
}

// Summary aggregates the captured history.
func (h *Handler) Summary() domain.ErrorSummary {
	return Summarize(h.Errors())
}
