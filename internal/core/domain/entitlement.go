package domain

// Entitlement carries the subscription-derived limits for one user.
type Entitlement struct {
	UserID                string
	Active                bool
	MaxConcurrentSessions int
}
