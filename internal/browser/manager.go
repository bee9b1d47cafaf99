// Package browser manages a shared Chrome instance over the DevTools
// protocol and exposes the page operations the agent and login flows need.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/logging"
	"github.com/webtriage/webtriage/internal/session"
)

// Manager owns a Chrome instance and its chromedp contexts.
type Manager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	// allowedDomains restricts Navigate targets; empty means no restriction.
	allowedDomains []string
}

// findChrome attempts to find a Chrome executable.
func findChrome() (string, error) {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}
	case "linux":
		paths = []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, path := range paths {
		if runtime.GOOS == "darwin" {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		} else if _, err := exec.LookPath(path); err == nil {
			return path, nil
		}
	}
	if path, err := exec.LookPath("chrome"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("Chrome browser not found, install Chrome or Chromium")
}

// NewManager launches Chrome according to the browser and context
// configuration and returns a ready manager.
func NewManager(cfg config.BrowserConfig, ctxCfg config.ContextConfig) (*Manager, error) {
	chromePath, err := findChrome()
	if err != nil {
		return nil, err
	}
	logging.L().Info("launching browser",
		zap.String("path", chromePath),
		zap.Bool("headless", cfg.IsHeadless()))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.WindowSize(1280, 1100),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if !cfg.IsHeadless() {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if ctxCfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(ctxCfg.UserAgent))
	}
	if ctxCfg.DisableSecurity {
		opts = append(opts,
			chromedp.Flag("disable-web-security", true),
			chromedp.Flag("disable-site-isolation-trials", true),
			chromedp.Flag("ignore-certificate-errors", true),
		)
	}
	if cfg.UseTestProfile && cfg.TestProfileName != "" {
		profileDir := filepath.Join(os.TempDir(), "webtriage-profile-"+cfg.TestProfileName)
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}
	for _, arg := range cfg.ExtraArgs {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, v ...interface{}) {
			logging.L().Debug(fmt.Sprintf("[chrome] "+format, v...))
		}),
	)

	// Start Chrome with the main context. A timeout context here would tear
	// down the whole instance when it fired.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}

	return &Manager{
		allocCtx:       allocCtx,
		allocCancel:    allocCancel,
		ctx:            ctx,
		cancel:         cancel,
		allowedDomains: ctxCfg.AllowedDomains,
	}, nil
}

// Navigate loads a URL in the managed tab. When allowed domains are
// configured, targets outside them are rejected before any page load.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	if len(m.allowedDomains) > 0 {
		host := hostOf(url)
		if !domainAllowed(host, m.allowedDomains) {
			return fmt.Errorf("navigation to %s blocked: %s is not an allowed domain", url, host)
		}
	}

	opCtx, cancel := m.opContext(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		if m.ctx.Err() != nil {
			return fmt.Errorf("browser context was cancelled")
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Location returns the current page URL and title.
func (m *Manager) Location(ctx context.Context) (url, title string, err error) {
	opCtx, cancel := m.opContext(ctx, 5*time.Second)
	defer cancel()

	err = chromedp.Run(opCtx,
		chromedp.Location(&url),
		chromedp.Title(&title),
	)
	return url, title, err
}

// WaitVisible blocks until the selector matches a visible element.
func (m *Manager) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := m.opContext(ctx, timeout)
	defer cancel()

	return chromedp.Run(opCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Fill clears a form field and types the value, firing input and change
// events so frameworks pick the value up.
func (m *Manager) Fill(ctx context.Context, selector, value string) error {
	opCtx, cancel := m.opContext(ctx, 10*time.Second)
	defer cancel()

	return chromedp.Run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`
			const el = document.querySelector(%q);
			if (el) {
				el.dispatchEvent(new Event('input', { bubbles: true }));
				el.dispatchEvent(new Event('change', { bubbles: true }));
			}
		`, selector), nil),
	)
}

// Click clicks the first element matching the selector.
func (m *Manager) Click(ctx context.Context, selector string) error {
	opCtx, cancel := m.opContext(ctx, 5*time.Second)
	defer cancel()

	return chromedp.Run(opCtx, chromedp.Click(selector, chromedp.ByQuery))
}

// Screenshot captures the full page as PNG bytes.
func (m *Manager) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	opCtx, cancel := m.opContext(ctx, 10*time.Second)
	defer cancel()

	err := chromedp.Run(opCtx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

// Cookies returns all cookies of the browser's storage.
func (m *Manager) Cookies(ctx context.Context) ([]session.Cookie, error) {
	opCtx, cancel := m.opContext(ctx, 10*time.Second)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading browser cookies: %w", err)
	}

	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

// SetCookies installs previously saved cookies into the browser.
func (m *Manager) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		params = append(params, p)
	}

	opCtx, cancel := m.opContext(ctx, 10*time.Second)
	defer cancel()

	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("installing cookies: %w", err)
	}
	return nil
}

// Close shuts the browser down and releases its contexts.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
}

// hostOf extracts the hostname from a URL, tolerating bare host strings.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

// domainAllowed reports whether host matches one of the allowed domains.
// An entry matches its own host and all subdomains; a leading "*." is
// accepted and means the same thing.
func domainAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimPrefix(d, "*."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// opContext derives a per-operation timeout context that also respects the
// caller's context.
func (m *Manager) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(m.ctx, timeout)
	if ctx == nil {
		return opCtx, cancel
	}

	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
