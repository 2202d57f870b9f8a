package domain

import (
	"fmt"
	"time"
)

// Severity ranks how badly a fault compromises the current unit of work.
// The ordering Low < Medium < High < Fatal is meaningful and used for
// comparison only, never arithmetic.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
}

// Category names the subsystem a fault originated from.
type Category string

const (
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryNavigation     Category = "NAVIGATION"
	CategoryElement        Category = "ELEMENT"
	CategoryNetwork        Category = "NETWORK"
	CategoryBrowser        Category = "BROWSER"
	CategoryApplication    Category = "APPLICATION"
	CategoryDatabase       Category = "DATABASE"
	CategorySystem         Category = "SYSTEM"
	CategoryUnknown        Category = "UNKNOWN"
)

// JobError is an immutable record of one classified fault captured during a
// unit of work. It is created once by the recovery handler and never mutated.
type JobError struct {
	ID             string         `json:"id"`
	CauseType      string         `json:"cause_type"`
	Cause          string         `json:"cause"`
	Severity       Severity       `json:"-"`
	Category       Category       `json:"category"`
	Message        string         `json:"message"`
	Context        map[string]any `json:"context,omitempty"`
	ScreenshotPath string         `json:"screenshot_path,omitempty"`
	Stack          string         `json:"-"`
	Timestamp      time.Time      `json:"timestamp"`
}

func (e *JobError) String() string {
	return fmt.Sprintf("%s error (%s): %s", e.Category, e.Severity, e.Message)
}

// AsMap flattens the error into the open map shape merged into the
// job-application record by the persistence collaborator.
func (e *JobError) AsMap() map[string]any {
	return map[string]any{
		"id":              e.ID,
		"cause_type":      e.CauseType,
		"cause":           e.Cause,
		"severity":        e.Severity.String(),
		"category":        string(e.Category),
		"message":         e.Message,
		"context":         e.Context,
		"screenshot_path": e.ScreenshotPath,
		"timestamp":       e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ErrorSummary aggregates the error history of one unit of work for
// end-of-run diagnostics.
type ErrorSummary struct {
	Count      int
	BySeverity map[string]int
	ByCategory map[string]int
	MostRecent map[string]any
}

func (s ErrorSummary) AsMap() map[string]any {
	m := map[string]any{"error_count": s.Count}
	if s.Count == 0 {
		return m
	}
	m["severity_counts"] = s.BySeverity
	m["category_counts"] = s.ByCategory
	m["most_recent"] = s.MostRecent
	return m
}
