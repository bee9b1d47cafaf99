// Package session stores per-site test credentials in the OS credential
// store and persists browser authentication state as encrypted blobs on
// disk, with expiry-based invalidation. Both are scoped by a profile name so
// multiple test identities stay isolated.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/webtriage/webtriage/internal/logging"
)

// ErrCredentialsNotFound is returned when a site has no stored credentials.
// Callers cannot proceed without credentials, so this is a hard failure.
var ErrCredentialsNotFound = errors.New("credentials not found")

// maxAuthAge is how long a saved auth state stays valid. Anything older is
// treated as absent regardless of whether the file still decrypts.
const maxAuthAge = 7 * 24 * time.Hour

const keyFileName = ".key"

// Cookie is one browser cookie, passed through this layer unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// AuthState is the persisted browser session for one site.
type AuthState struct {
	Cookies   []Cookie `json:"cookies"`
	Timestamp int64    `json:"timestamp"` // seconds since epoch
}

// Manager owns credentials and auth-state persistence for one profile.
type Manager struct {
	profile string
	dir     string

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewManager creates a manager for the named profile. Auth state lives under
// {authRoot}/{profile}.
func NewManager(profile, authRoot string) (*Manager, error) {
	dir := filepath.Join(authRoot, profile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}

	return &Manager{
		profile: profile,
		dir:     dir,
		now:     time.Now,
	}, nil
}

// serviceName is the keyring service identifier scoping this profile.
func (m *Manager) serviceName() string {
	return "webtriage_" + m.profile
}

// StoreCredentials writes the site's username and password into the OS
// credential store, overwriting any existing entry.
func (m *Manager) StoreCredentials(site, username, password string) error {
	service := m.serviceName()
	if err := keyring.Set(service, site+"_user", username); err != nil {
		return fmt.Errorf("failed to store username for %s: %w", site, err)
	}
	if err := keyring.Set(service, site+"_pass", password); err != nil {
		return fmt.Errorf("failed to store password for %s: %w", site, err)
	}
	logging.L().Info("stored credentials", zap.String("site", site), zap.String("profile", m.profile))
	return nil
}

// Credentials retrieves the site's username and password. Either half being
// absent yields ErrCredentialsNotFound.
func (m *Manager) Credentials(site string) (username, password string, err error) {
	service := m.serviceName()

	username, err = keyring.Get(service, site+"_user")
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", fmt.Errorf("%w for site %s", ErrCredentialsNotFound, site)
		}
		return "", "", fmt.Errorf("failed to read username for %s: %w", site, err)
	}

	password, err = keyring.Get(service, site+"_pass")
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", fmt.Errorf("%w for site %s", ErrCredentialsNotFound, site)
		}
		return "", "", fmt.Errorf("failed to read password for %s: %w", site, err)
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("%w for site %s", ErrCredentialsNotFound, site)
	}
	return username, password, nil
}

// DeleteCredentials removes the site's stored credentials. Missing entries
// are not an error.
func (m *Manager) DeleteCredentials(site string) error {
	service := m.serviceName()
	for _, key := range []string{site + "_user", site + "_pass"} {
		if err := keyring.Delete(service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete credential %s: %w", key, err)
		}
	}
	return nil
}

// authFile returns the path of the encrypted state blob for a site.
func (m *Manager) authFile(site string) string {
	return filepath.Join(m.dir, site+"_auth.enc")
}

// SaveAuthState encrypts and persists the site's cookies with the current
// timestamp. The write is atomic: the blob is staged to a temp file and
// renamed, so a failed save never leaves a partial artifact.
func (m *Manager) SaveAuthState(site string, cookies []Cookie) error {
	state := AuthState{
		Cookies:   cookies,
		Timestamp: m.now().Unix(),
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal auth state: %w", err)
	}

	key, err := m.getOrCreateKey()
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}

	token, err := fernet.EncryptAndSign(payload, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt auth state: %w", err)
	}

	target := m.authFile(site)
	tmp, err := os.CreateTemp(m.dir, site+"_auth.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage auth state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write auth state: %w", err)
	}

	logging.L().Info("saved auth state", zap.String("site", site), zap.String("profile", m.profile))
	return nil
}

// LoadAuthState returns the site's persisted session, or (nil, false) when
// no valid one exists. Missing file, decrypt failure, parse failure, expiry
// and unexpected I/O errors all collapse to "not authenticated": any
// uncertainty means the caller must log in again.
func (m *Manager) LoadAuthState(site string) (*AuthState, bool) {
	log := logging.L()

	token, err := os.ReadFile(m.authFile(site))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("failed to read auth state", zap.String("site", site), zap.Error(err))
		}
		return nil, false
	}

	key, err := m.loadKey()
	if err != nil {
		log.Error("failed to load encryption key", zap.String("site", site), zap.Error(err))
		return nil, false
	}

	// Expiry is enforced by our own timestamp below, not fernet's TTL.
	payload := fernet.VerifyAndDecrypt(token, 0, []*fernet.Key{key})
	if payload == nil {
		log.Error("failed to decrypt auth state", zap.String("site", site))
		return nil, false
	}

	var state AuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		log.Error("failed to parse auth state", zap.String("site", site), zap.Error(err))
		return nil, false
	}

	age := m.now().Sub(time.Unix(state.Timestamp, 0))
	if age > maxAuthAge {
		log.Info("auth state expired", zap.String("site", site), zap.Duration("age", age))
		return nil, false
	}

	// Hand out a copy of the cookie slice, never the stored backing array.
	out := &AuthState{
		Cookies:   append([]Cookie(nil), state.Cookies...),
		Timestamp: state.Timestamp,
	}
	log.Info("loaded auth state", zap.String("site", site), zap.Int("cookies", len(out.Cookies)))
	return out, true
}

// ClearAuthState removes the persisted state for a site. Missing files are
// not an error.
func (m *Manager) ClearAuthState(site string) error {
	if err := os.Remove(m.authFile(site)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear auth state: %w", err)
	}
	return nil
}

// loadKey reads the profile's encryption key. Losing the key file
// permanently invalidates every blob for the profile; there is no recovery.
func (m *Manager) loadKey() (*fernet.Key, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, keyFileName))
	if err != nil {
		return nil, err
	}
	key, err := fernet.DecodeKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	return key, nil
}

// getOrCreateKey returns the profile key, generating it on first use. The
// key file is created with O_EXCL so exactly one writer wins; a loser of
// that race re-reads the winner's key instead of clobbering it.
func (m *Manager) getOrCreateKey() (*fernet.Key, error) {
	if key, err := m.loadKey(); err == nil {
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	keyPath := filepath.Join(m.dir, keyFileName)
	f, err := os.OpenFile(keyPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			// Lost the creation race; use the winner's key.
			return m.loadKey()
		}
		return nil, fmt.Errorf("failed to create key file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(key.Encode()); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return &key, nil
}
