package browser

import (
	"context"
	"errors"

	"github.com/applyflow/agent/internal/core/domain"
)

// ErrDriverClosed is returned by driver operations after Close.
var ErrDriverClosed = errors.New("browser: driver closed")

// Driver is one live connection to a browser-automation engine. A driver is
// owned by exactly one session and must not be shared between workflows.
type Driver interface {
	// Navigate loads the given URL and waits for the DOM to be ready.
	Navigate(url string) error

	// Reload reloads the current page.
	Reload() error

	// URL returns the current page location.
	URL() string

	// HasSelector reports whether an element matching the selector is
	// currently present on the page.
	HasSelector(selector string) (bool, error)

	// Cookies returns the cookie set of the browser context.
	Cookies() ([]domain.Cookie, error)

	// AddCookie injects a single cookie into the browser context.
	AddCookie(cookie domain.Cookie) error

	// Screenshot writes a screenshot of the current page to path.
	Screenshot(path string) error

	// Close releases the underlying browser resources. Subsequent calls
	// on the driver fail fast with ErrDriverClosed.
	Close() error
}

// Provisioner constructs driver handles for the session pool.
type Provisioner interface {
	NewDriver(ctx context.Context, userID string) (Driver, error)
}
