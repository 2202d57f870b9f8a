package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/applyflow/agent/internal/core/domain"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds browser provisioning configuration.
type Config struct {
	// RemoteURL is a websocket endpoint of a remote browser grid. When set,
	// provisioning connects there first and only falls back to a local
	// launch if the grid is unreachable.
	RemoteURL         string `yaml:"remote_url"`
	Headless          bool   `yaml:"headless"`
	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	NavTimeoutSeconds int    `yaml:"nav_timeout_seconds"`
}

// PlaywrightProvisioner creates browser drivers backed by Playwright.
// One Playwright runtime is shared by all drivers it creates.
type PlaywrightProvisioner struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightProvisioner installs the Playwright runtime and starts it.
func NewPlaywrightProvisioner(cfg Config, log *slog.Logger) (*PlaywrightProvisioner, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &PlaywrightProvisioner{cfg: cfg, log: log, pw: pw}, nil
}

// NewDriver connects to the remote grid when configured, falling back to a
// local Chromium launch, and prepares a fresh context and page.
func (p *PlaywrightProvisioner) NewDriver(ctx context.Context, userID string) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br, err := p.openBrowser(userID)
	if err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  p.cfg.ViewportWidth,
			Height: p.cfg.ViewportHeight,
		},
		UserAgent: playwright.String(defaultUserAgent),
	}
	bctx, err := br.NewContext(contextOpts)
	if err != nil {
		_ = br.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = br.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(p.cfg.NavTimeoutSeconds) * 1000)

	return &playwrightDriver{browser: br, bctx: bctx, page: page}, nil
}

func (p *PlaywrightProvisioner) openBrowser(userID string) (playwright.Browser, error) {
	p.mu.Lock()
	pw := p.pw
	p.mu.Unlock()
	if pw == nil {
		return nil, fmt.Errorf("playwright runtime stopped")
	}

	if p.cfg.RemoteURL != "" {
		br, err := pw.Chromium.Connect(p.cfg.RemoteURL)
		if err == nil {
			return br, nil
		}
		p.log.Warn("remote browser unreachable, launching locally",
			"user_id", userID,
			"remote_url", p.cfg.RemoteURL,
			"error", err)
	}

	br, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.cfg.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return br, nil
}

// Stop shuts down the shared Playwright runtime. Drivers created earlier
// become unusable.
func (p *PlaywrightProvisioner) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw == nil {
		return nil
	}
	err := p.pw.Stop()
	p.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type playwrightDriver struct {
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	mu     sync.Mutex
	closed bool
}

func (d *playwrightDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *playwrightDriver) Navigate(url string) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	waitUntil := playwright.WaitUntilState("domcontentloaded")
	_, err := d.page.Goto(url, playwright.PageGotoOptions{WaitUntil: &waitUntil})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *playwrightDriver) Reload() error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	if _, err := d.page.Reload(); err != nil {
		return fmt.Errorf("failed to reload page: %w", err)
	}
	return nil
}

func (d *playwrightDriver) URL() string {
	if d.isClosed() {
		return ""
	}
	return d.page.URL()
}

func (d *playwrightDriver) HasSelector(selector string) (bool, error) {
	if d.isClosed() {
		return false, ErrDriverClosed
	}
	element, err := d.page.QuerySelector(selector)
	if err != nil {
		return false, fmt.Errorf("failed to query selector %q: %w", selector, err)
	}
	return element != nil, nil
}

func (d *playwrightDriver) Cookies() ([]domain.Cookie, error) {
	if d.isClosed() {
		return nil, ErrDriverClosed
	}
	raw, err := d.bctx.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]domain.Cookie, 0, len(raw))
	for _, c := range raw {
		ck := domain.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			ck.SameSite = string(*c.SameSite)
		}
		cookies = append(cookies, ck)
	}
	return cookies, nil
}

func (d *playwrightDriver) AddCookie(cookie domain.Cookie) error {
	if d.isClosed() {
		return ErrDriverClosed
	}

	oc := playwright.OptionalCookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Domain:   playwright.String(cookie.Domain),
		Path:     playwright.String(cookie.Path),
		HttpOnly: playwright.Bool(cookie.HTTPOnly),
		Secure:   playwright.Bool(cookie.Secure),
	}
	if cookie.Expires > 0 {
		oc.Expires = playwright.Float(cookie.Expires)
	}
	switch cookie.SameSite {
	case "Strict":
		oc.SameSite = playwright.SameSiteAttributeStrict
	case "Lax":
		oc.SameSite = playwright.SameSiteAttributeLax
	case "None":
		oc.SameSite = playwright.SameSiteAttributeNone
	}

	if err := d.bctx.AddCookies([]playwright.OptionalCookie{oc}); err != nil {
		return fmt.Errorf("failed to add cookie %q: %w", cookie.Name, err)
	}
	return nil
}

func (d *playwrightDriver) Screenshot(path string) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	_, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return nil
}

// Close tears down page, context and browser in that order. It is safe to
// call more than once.
func (d *playwrightDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	_ = d.page.Close()
	_ = d.bctx.Close()
	if err := d.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
