package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/applyflow/agent/internal/core/domain"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: i/o problem" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassify_TypedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity domain.Severity
		category domain.Category
	}{
		{"cancelled run", context.Canceled, domain.SeverityFatal, domain.CategorySystem},
		{"wrapped cancellation", fmt.Errorf("navigate: %w", context.Canceled),
			domain.SeverityFatal, domain.CategorySystem},
		{"login denied", domain.ErrLoginDenied,
			domain.SeverityFatal, domain.CategoryAuthentication},
		{"challenge timeout", domain.ErrChallengeTimeout,
			domain.SeverityHigh, domain.CategoryAuthentication},
		{"net error", fakeNetError{}, domain.SeverityHigh, domain.CategoryNetwork},
		{"deadline exceeded", fmt.Errorf("goto: %w", context.DeadlineExceeded),
			domain.SeverityMedium, domain.CategoryNavigation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, cat, _ := Classify(tt.err)
			if sev != tt.severity {
				t.Errorf("severity: expected %s, got %s", tt.severity, sev)
			}
			if cat != tt.category {
				t.Errorf("category: expected %s, got %s", tt.category, cat)
			}
		})
	}
}

func TestClassify_SubstringTable(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		severity domain.Severity
		category domain.Category
	}{
		{"timeout", "Timeout 30000ms exceeded", domain.SeverityMedium, domain.CategoryNavigation},
		{"stale element", "element is stale", domain.SeverityLow, domain.CategoryElement},
		{"click intercepted", "element click intercepted by overlay",
			domain.SeverityMedium, domain.CategoryElement},
		{"not interactable", "element not interactable",
			domain.SeverityMedium, domain.CategoryElement},
		{"missing element", "no such element: div.apply",
			domain.SeverityMedium, domain.CategoryElement},
		{"script failure", "javascript error: undefined is not a function",
			domain.SeverityMedium, domain.CategoryBrowser},
		{"evaluate failure", "evaluate: execution context destroyed",
			domain.SeverityMedium, domain.CategoryBrowser},
		{"target closed", "Target closed", domain.SeverityHigh, domain.CategoryBrowser},
		{"browser gone", "browser not reachable", domain.SeverityHigh, domain.CategoryBrowser},
		{"connection refused", "connection refused",
			domain.SeverityHigh, domain.CategoryNetwork},
		{"sql text", "sql: no rows in result set",
			domain.SeverityHigh, domain.CategoryDatabase},
		{"pq text", "pq: deadlock detected", domain.SeverityHigh, domain.CategoryDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, cat, _ := Classify(errors.New(tt.msg))
			if sev != tt.severity {
				t.Errorf("severity: expected %s, got %s", tt.severity, sev)
			}
			if cat != tt.category {
				t.Errorf("category: expected %s, got %s", tt.category, cat)
			}
		})
	}
}

func TestClassify_TimeoutBeforeElement(t *testing.T) {
	// A message matching both rules must resolve to the timeout rule.
	sev, cat, _ := Classify(errors.New("timeout waiting for element to be stale"))
	if sev != domain.SeverityMedium || cat != domain.CategoryNavigation {
		t.Errorf("expected MEDIUM/NAVIGATION, got %s/%s", sev, cat)
	}
}

func TestClassify_Unknown(t *testing.T) {
	sev, cat, msg := Classify(errors.New("something inexplicable"))
	if sev != domain.SeverityHigh {
		t.Errorf("expected HIGH, got %s", sev)
	}
	if cat != domain.CategoryUnknown {
		t.Errorf("expected UNKNOWN, got %s", cat)
	}
	if msg != "something inexplicable" {
		t.Errorf("expected raw message preserved, got %q", msg)
	}
}
