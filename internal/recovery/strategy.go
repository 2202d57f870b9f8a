package recovery

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
)

// Policy decides whether a classified fault is worth another attempt and
// how long to back off before it.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy returns the standard retry budget: 3 retries starting at 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// ShouldRetry reports whether the unit of work may be attempted again.
// Fatal faults and exhausted budgets never retry. Low and medium faults
// always retry; high faults retry only for categories where a fresh
// attempt can plausibly see different conditions.
func (p Policy) ShouldRetry(e *domain.JobError, retryCount int) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	if e.Severity == domain.SeverityFatal {
		return false
	}
	if e.Severity == domain.SeverityLow || e.Severity == domain.SeverityMedium {
		return true
	}
	switch e.Category {
	case domain.CategoryNetwork, domain.CategoryBrowser, domain.CategoryNavigation:
		return true
	}
	return false
}

// NextDelay returns the backoff before the next attempt given how many
// retries have already happened: BaseDelay * 2^retryCount, jittered by up
// to ±10%. It never sleeps; the caller owns the wait so it can remain
// cancellable.
func (p Policy) NextDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(retryCount))
	jitter := delay * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(delay + jitter)
}

// Summarize aggregates an error history into per-severity and per-category
// counts plus the most recent record.
func Summarize(errs []*domain.JobError) domain.ErrorSummary {
	summary := domain.ErrorSummary{
		Count:      len(errs),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	if len(errs) == 0 {
		return summary
	}
	for _, e := range errs {
		summary.BySeverity[e.Severity.String()]++
		summary.ByCategory[string(e.Category)]++
	}
	summary.MostRecent = errs[len(errs)-1].AsMap()
	return summary
}
