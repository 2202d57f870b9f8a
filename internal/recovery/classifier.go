package recovery

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/applyflow/agent/internal/core/domain"
)

// Classify maps an error to a severity, a category, and a human-readable
// summary. Typed errors are matched first; everything else goes through a
// substring table over the lowercased error text, most specific rules first.
func Classify(err error) (domain.Severity, domain.Category, string) {
	if errors.Is(err, context.Canceled) {
		return domain.SeverityFatal, domain.CategorySystem, "Run cancelled"
	}
	// DeadlineExceeded satisfies net.Error; match it before the network rule.
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.SeverityMedium, domain.CategoryNavigation, "Page load timed out"
	}
	if errors.Is(err, domain.ErrLoginDenied) {
		return domain.SeverityFatal, domain.CategoryAuthentication, "Login denied"
	}
	if errors.Is(err, domain.ErrChallengeTimeout) {
		return domain.SeverityHigh, domain.CategoryAuthentication,
			"Security challenge not cleared in time"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return domain.SeverityHigh, domain.CategoryDatabase,
			"Database error: " + pqErr.Message
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return domain.SeverityHigh, domain.CategoryDatabase, "Database connection lost"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.SeverityHigh, domain.CategoryNetwork, "Network failure"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return domain.SeverityMedium, domain.CategoryNavigation, "Page load timed out"
	case strings.Contains(msg, "stale"):
		return domain.SeverityLow, domain.CategoryElement, "Element went stale"
	case strings.Contains(msg, "intercept"),
		strings.Contains(msg, "not interactable"):
		return domain.SeverityMedium, domain.CategoryElement, "Element not interactable"
	case strings.Contains(msg, "no element"),
		strings.Contains(msg, "no such element"):
		return domain.SeverityMedium, domain.CategoryElement, "Element not found"
	case strings.Contains(msg, "javascript"),
		strings.Contains(msg, "evaluate"):
		return domain.SeverityMedium, domain.CategoryBrowser, "Script execution failed"
	case strings.Contains(msg, "target closed"),
		strings.Contains(msg, "not reachable"):
		return domain.SeverityHigh, domain.CategoryBrowser, "Browser connection lost"
	case strings.Contains(msg, "connection refused"):
		return domain.SeverityHigh, domain.CategoryNetwork, "Connection refused"
	case strings.Contains(msg, "sql"),
		strings.Contains(msg, "pq:"),
		strings.Contains(msg, "database"):
		return domain.SeverityHigh, domain.CategoryDatabase, "Database operation failed"
	}

	return domain.SeverityHigh, domain.CategoryUnknown, err.Error()
}
