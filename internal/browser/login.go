package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/config"
	"github.com/webtriage/webtriage/internal/logging"
	"github.com/webtriage/webtriage/internal/session"
)

// FormLogin performs a username/password login against the site's form.
// Sites with a two-phase form (username, then a "next" step revealing the
// password field) set NextButton; single-page forms leave it empty.
func (m *Manager) FormLogin(ctx context.Context, site config.SiteAuth, username, password string) error {
	log := logging.L().With(zap.String("site", site.Name))
	log.Info("logging in via form", zap.String("url", site.LoginURL))

	if err := m.Navigate(ctx, site.LoginURL); err != nil {
		return err
	}
	if err := m.Fill(ctx, site.UsernameField, username); err != nil {
		return fmt.Errorf("filling username on %s: %w", site.Name, err)
	}

	if site.NextButton != "" {
		if err := m.Click(ctx, site.NextButton); err != nil {
			return fmt.Errorf("advancing login form on %s: %w", site.Name, err)
		}
	}

	if err := m.Fill(ctx, site.PasswordField, password); err != nil {
		return fmt.Errorf("filling password on %s: %w", site.Name, err)
	}
	if err := m.Click(ctx, site.SubmitButton); err != nil {
		return fmt.Errorf("submitting login form on %s: %w", site.Name, err)
	}

	if site.SuccessSelector != "" {
		if err := m.WaitVisible(ctx, site.SuccessSelector, 30*time.Second); err != nil {
			return fmt.Errorf("login confirmation never appeared on %s: %w", site.Name, err)
		}
	}

	log.Info("login succeeded")
	return nil
}

// EnsureLoggedIn establishes an authenticated browser session for the site.
// A valid saved auth state is replayed into the browser; otherwise it logs
// in with the stored credentials and saves the fresh cookies. Missing
// credentials are a hard failure.
func (m *Manager) EnsureLoggedIn(ctx context.Context, sess *session.Manager, site config.SiteAuth) error {
	log := logging.L().With(zap.String("site", site.Name))

	if state, ok := sess.LoadAuthState(site.Name); ok {
		log.Info("restoring saved auth state", zap.Int("cookies", len(state.Cookies)))
		if err := m.SetCookies(ctx, state.Cookies); err != nil {
			return err
		}
		return nil
	}

	username, password, err := sess.Credentials(site.Name)
	if err != nil {
		return err
	}

	if err := m.FormLogin(ctx, site, username, password); err != nil {
		return err
	}

	cookies, err := m.Cookies(ctx)
	if err != nil {
		return err
	}
	if err := sess.SaveAuthState(site.Name, cookies); err != nil {
		log.Warn("could not save auth state", zap.Error(err))
	}
	return nil
}
