package domain

import "errors"

// Cookie is one browser cookie captured from, or restored into, a driver
// session. The field set mirrors what browser engines expose.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Valid reports whether the cookie carries enough data to be injected.
func (c Cookie) Valid() bool {
	return c.Name != "" && c.Value != ""
}

// Authentication protocol outcomes surfaced by the login agent.
var (
	// ErrChallengeTimeout means an interactive security challenge was not
	// cleared within the configured bound. The whole login may be retried.
	ErrChallengeTimeout = errors.New("auth: security challenge not cleared in time")

	// ErrLoginDenied means the target site explicitly refused the login.
	// This is unrecoverable without user action.
	ErrLoginDenied = errors.New("auth: login denied")
)
