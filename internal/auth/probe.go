package auth

import (
	"fmt"

	"github.com/applyflow/agent/internal/infra/browser"
)

// Positive login signals, checked in order. The first hit wins; the probe
// only falls through to URL-based denial when none are present.
var loggedInSelectors = []string{
	`button:has-text("Start a post")`,
	`img[alt*="Photo of"], img[alt*="profile photo"]`,
	`.feed-shared-update-v2`,
}

// IsLoggedIn navigates to the feed and probes for login state. An unknown
// state is reported as not logged in.
func (a *Authenticator) IsLoggedIn(drv browser.Driver) (bool, error) {
	if err := drv.Navigate(a.cfg.BaseURL + "/feed"); err != nil {
		return false, fmt.Errorf("failed to reach feed: %w", err)
	}

	for _, sel := range loggedInSelectors {
		found, err := drv.HasSelector(sel)
		if err != nil {
			return false, fmt.Errorf("failed to probe login state: %w", err)
		}
		if found {
			return true, nil
		}
	}

	// Redirected to login or checkpoint means definitely logged out; an
	// unrecognized page is treated the same way.
	return false, nil
}
