package recovery

import (
	"testing"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
)

func jobErr(sev domain.Severity, cat domain.Category) *domain.JobError {
	return &domain.JobError{Severity: sev, Category: cat}
}

func TestPolicy_ShouldRetry(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name       string
		e          *domain.JobError
		retryCount int
		want       bool
	}{
		{"low always retries", jobErr(domain.SeverityLow, domain.CategoryElement), 0, true},
		{"medium always retries", jobErr(domain.SeverityMedium, domain.CategoryNavigation), 2, true},
		{"fatal never retries", jobErr(domain.SeverityFatal, domain.CategoryNetwork), 0, false},
		{"high network retries", jobErr(domain.SeverityHigh, domain.CategoryNetwork), 1, true},
		{"high browser retries", jobErr(domain.SeverityHigh, domain.CategoryBrowser), 1, true},
		{"high navigation retries", jobErr(domain.SeverityHigh, domain.CategoryNavigation), 1, true},
		{"high database does not retry", jobErr(domain.SeverityHigh, domain.CategoryDatabase), 0, false},
		{"high auth does not retry", jobErr(domain.SeverityHigh, domain.CategoryAuthentication), 0, false},
		{"high unknown does not retry", jobErr(domain.SeverityHigh, domain.CategoryUnknown), 0, false},
		{"budget exhausted", jobErr(domain.SeverityLow, domain.CategoryElement), 3, false},
		{"budget exceeded", jobErr(domain.SeverityMedium, domain.CategoryNetwork), 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.e, tt.retryCount); got != tt.want {
				t.Errorf("ShouldRetry(%s/%s, %d) = %v, want %v",
					tt.e.Severity, tt.e.Category, tt.retryCount, got, tt.want)
			}
		})
	}
}

func TestPolicy_NextDelay(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second}

	// The first retry (zero retries done so far) backs off ~BaseDelay,
	// then doubles: base*2^r within ±10% jitter.
	for retry := 0; retry <= 3; retry++ {
		base := float64(time.Second) * float64(int(1)<<retry)
		lo := time.Duration(base * 0.9)
		hi := time.Duration(base * 1.1)

		// Jitter is random; sample a few times.
		for i := 0; i < 20; i++ {
			d := p.NextDelay(retry)
			if d < lo || d > hi {
				t.Fatalf("NextDelay(%d) = %v outside [%v, %v]", retry, d, lo, hi)
			}
		}
	}
}

func TestPolicy_NextDelay_FloorsRetryCount(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second}
	d := p.NextDelay(-1)
	if d < 900*time.Millisecond || d > 1100*time.Millisecond {
		t.Errorf("NextDelay(-1) = %v, expected first-retry delay", d)
	}
}

func TestSummarize(t *testing.T) {
	errs := []*domain.JobError{
		jobErr(domain.SeverityMedium, domain.CategoryNavigation),
		jobErr(domain.SeverityMedium, domain.CategoryElement),
		jobErr(domain.SeverityHigh, domain.CategoryNetwork),
	}
	errs[2].ID = "last"

	summary := Summarize(errs)
	if summary.Count != 3 {
		t.Fatalf("expected count 3, got %d", summary.Count)
	}
	if summary.BySeverity["MEDIUM"] != 2 || summary.BySeverity["HIGH"] != 1 {
		t.Errorf("unexpected severity counts: %v", summary.BySeverity)
	}
	if summary.ByCategory["NAVIGATION"] != 1 || summary.ByCategory["NETWORK"] != 1 {
		t.Errorf("unexpected category counts: %v", summary.ByCategory)
	}
	if summary.MostRecent["id"] != "last" {
		t.Errorf("expected most recent to be the last capture, got %v", summary.MostRecent["id"])
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Count != 0 {
		t.Fatalf("expected count 0, got %d", summary.Count)
	}
	m := summary.AsMap()
	if len(m) != 1 {
		t.Errorf("expected only error_count in empty summary map, got %v", m)
	}
}
