package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/applyflow/agent/internal/core/domain"
	"github.com/applyflow/agent/internal/infra/browser"
	"github.com/applyflow/agent/internal/infra/storage"
)

// Config holds authentication configuration.
type Config struct {
	// BaseURL is the root of the target site, without a trailing slash.
	BaseURL string

	// PollInterval is how often the manual-login watcher samples the
	// page URL.
	PollInterval time.Duration

	// ChallengeWait bounds how long a security challenge may stay
	// unresolved before the run is abandoned.
	ChallengeWait time.Duration
}

// Authenticator brings a browser session into a logged-in state, preferring
// stored cookies and falling back to watching a manual login.
type Authenticator struct {
	cfg   Config
	creds storage.CredentialStore
	log   *slog.Logger
}

// NewAuthenticator creates an authenticator backed by the given credential
// store.
func NewAuthenticator(cfg Config, creds storage.CredentialStore, log *slog.Logger) *Authenticator {
	return &Authenticator{cfg: cfg, creds: creds, log: log}
}

// EnsureLoggedIn makes the driver's browser context authenticated for the
// user. Stored cookies are tried first; when they do not yield a logged-in
// state the manual login flow is watched until it completes, the security
// challenge wait expires, or ctx is cancelled. On success the live cookies
// are persisted back to the store.
func (a *Authenticator) EnsureLoggedIn(
	ctx context.Context,
	drv browser.Driver,
	userID string,
) error {
	cookies, found, err := a.creds.LoadCookies(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load stored cookies: %w", err)
	}

	if found && len(cookies) > 0 {
		ok, err := a.restoreSession(drv, cookies)
		if err != nil {
			return err
		}
		if ok {
			a.log.Info("session restored from cookies", "user_id", userID)
			return a.persistSession(ctx, drv, userID)
		}
		a.log.Info("stored cookies rejected, falling back to manual login",
			"user_id", userID)
	}

	if err := a.watchManualLogin(ctx, drv, userID); err != nil {
		return err
	}
	return a.persistSession(ctx, drv, userID)
}

// restoreSession injects stored cookies into the driver and probes whether
// they still produce a logged-in state. Malformed cookies are skipped.
func (a *Authenticator) restoreSession(
	drv browser.Driver,
	cookies []domain.Cookie,
) (bool, error) {
	if err := drv.Navigate(a.cfg.BaseURL); err != nil {
		return false, fmt.Errorf("failed to open site for cookie restore: %w", err)
	}

	injected := 0
	for _, c := range cookies {
		if !c.Valid() {
			a.log.Warn("skipping malformed stored cookie", "name", c.Name)
			continue
		}
		if err := drv.AddCookie(c); err != nil {
			a.log.Warn("skipping rejected cookie", "name", c.Name, "error", err)
			continue
		}
		injected++
	}
	if injected == 0 {
		return false, nil
	}

	if err := drv.Reload(); err != nil {
		return false, fmt.Errorf("failed to reload after cookie restore: %w", err)
	}
	return a.IsLoggedIn(drv)
}

// watchManualLogin opens the login page and polls the page URL until the
// user completes the flow.
func (a *Authenticator) watchManualLogin(
	ctx context.Context,
	drv browser.Driver,
	userID string,
) error {
	if err := drv.Navigate(a.cfg.BaseURL + "/login"); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	a.log.Info("waiting for manual login", "user_id", userID)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			url := drv.URL()
			switch {
			case strings.Contains(url, "/feed"):
				a.log.Info("manual login completed", "user_id", userID)
				return nil
			case strings.Contains(url, "/checkpoint/"):
				if err := a.waitForChallenge(ctx, drv, userID); err != nil {
					return err
				}
				return nil
			}
		}
	}
}

// waitForChallenge waits for a security challenge to be cleared, bounded by
// ChallengeWait.
func (a *Authenticator) waitForChallenge(
	ctx context.Context,
	drv browser.Driver,
	userID string,
) error {
	a.log.Warn("security challenge detected", "user_id", userID,
		"wait", a.cfg.ChallengeWait)

	deadline := time.Now().Add(a.cfg.ChallengeWait)
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Challenge flows bounce through interstitial URLs; anything
			// short of the feed counts as still pending.
			if strings.Contains(drv.URL(), "/feed") {
				a.log.Info("security challenge cleared", "user_id", userID)
				return nil
			}
			if time.Now().After(deadline) {
				return domain.ErrChallengeTimeout
			}
		}
	}
}

// persistSession captures the live cookie set and marks the user
// authenticated.
func (a *Authenticator) persistSession(
	ctx context.Context,
	drv browser.Driver,
	userID string,
) error {
	cookies, err := drv.Cookies()
	if err != nil {
		return fmt.Errorf("failed to capture session cookies: %w", err)
	}
	if err := a.creds.SaveCookies(ctx, userID, cookies); err != nil {
		return fmt.Errorf("failed to persist session cookies: %w", err)
	}
	if err := a.creds.SetAuthenticated(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to mark user authenticated: %w", err)
	}
	a.log.Info("session persisted", "user_id", userID, "cookies", len(cookies))
	return nil
}
