package recovery

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/applyflow/agent/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestHandler_Capture(t *testing.T) {
	h := NewHandler(DefaultPolicy(), testLogger(), nil)

	record := h.Capture(errors.New("no such element: button.apply"), map[string]any{
		"application_id": "app-1",
	})

	if record.ID == "" {
		t.Error("expected a generated error ID")
	}
	if record.Severity != domain.SeverityMedium || record.Category != domain.CategoryElement {
		t.Errorf("unexpected classification: %s/%s", record.Severity, record.Category)
	}
	if record.Cause != "no such element: button.apply" {
		t.Errorf("unexpected cause: %q", record.Cause)
	}
	if record.Context["application_id"] != "app-1" {
		t.Errorf("context not preserved: %v", record.Context)
	}
	if record.Stack == "" {
		t.Error("expected a captured stack")
	}
	if record.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestHandler_ScreenshotAttached(t *testing.T) {
	h := NewHandler(DefaultPolicy(), testLogger(), func() (string, error) {
		return "/tmp/shot.png", nil
	})

	record := h.Capture(errors.New("timeout"), nil)
	if record.ScreenshotPath != "/tmp/shot.png" {
		t.Errorf("expected screenshot path attached, got %q", record.ScreenshotPath)
	}
}

func TestHandler_ScreenshotFailureNonFatal(t *testing.T) {
	h := NewHandler(DefaultPolicy(), testLogger(), func() (string, error) {
		return "", errors.New("page gone")
	})

	record := h.Capture(errors.New("timeout"), nil)
	if record == nil {
		t.Fatal("capture must survive screenshot failure")
	}
	if record.ScreenshotPath != "" {
		t.Errorf("expected empty screenshot path, got %q", record.ScreenshotPath)
	}
}

func TestHandler_HistoryAndSummary(t *testing.T) {
	h := NewHandler(DefaultPolicy(), testLogger(), nil)

	h.Capture(errors.New("timeout"), nil)
	h.Capture(errors.New("element is stale"), nil)

	errs := h.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 captured errors, got %d", len(errs))
	}
	if errs[0].Category != domain.CategoryNavigation {
		t.Errorf("history order broken: first is %s", errs[0].Category)
	}

	summary := h.Summary()
	if summary.Count != 2 {
		t.Errorf("expected summary count 2, got %d", summary.Count)
	}
	if summary.BySeverity["LOW"] != 1 || summary.BySeverity["MEDIUM"] != 1 {
		t.Errorf("unexpected severity counts: %v", summary.BySeverity)
	}
}

func TestHandler_DelegatesPolicy(t *testing.T) {
	p := Policy{MaxRetries: 1, BaseDelay: 1}
	h := NewHandler(p, testLogger(), nil)

	e := &domain.JobError{Severity: domain.SeverityMedium, Category: domain.CategoryElement}
	if !h.ShouldRetry(e, 0) {
		t.Error("expected retry allowed at count 0")
	}
	if h.ShouldRetry(e, 1) {
		t.Error("expected retry denied at budget")
	}
}
