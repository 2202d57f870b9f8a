package domain

// ApplicationStatus is the lifecycle state of a job-application record.
type ApplicationStatus string

const (
	ApplicationStatusPending ApplicationStatus = "pending"
	ApplicationStatusApplied ApplicationStatus = "applied"
	ApplicationStatusError   ApplicationStatus = "error"
	ApplicationStatusFailed  ApplicationStatus = "failed"
)
