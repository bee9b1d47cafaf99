package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test_profile", t.TempDir())
	require.NoError(t, err)
	return m
}

func TestCredentialsRoundTrip(t *testing.T) {
	keyring.MockInit()
	m := newTestManager(t)

	require.NoError(t, m.StoreCredentials("siteA", "u", "p"))

	user, pass, err := m.Credentials("siteA")
	require.NoError(t, err)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestCredentialsNotFound(t *testing.T) {
	keyring.MockInit()
	m := newTestManager(t)

	_, _, err := m.Credentials("siteB")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestCredentialsOverwrite(t *testing.T) {
	keyring.MockInit()
	m := newTestManager(t)

	require.NoError(t, m.StoreCredentials("siteA", "u1", "p1"))
	require.NoError(t, m.StoreCredentials("siteA", "u2", "p2"))

	user, pass, err := m.Credentials("siteA")
	require.NoError(t, err)
	assert.Equal(t, "u2", user)
	assert.Equal(t, "p2", pass)
}

func TestDeleteCredentials(t *testing.T) {
	keyring.MockInit()
	m := newTestManager(t)

	require.NoError(t, m.StoreCredentials("siteA", "u", "p"))
	require.NoError(t, m.DeleteCredentials("siteA"))

	_, _, err := m.Credentials("siteA")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	// Deleting again is a no-op.
	require.NoError(t, m.DeleteCredentials("siteA"))
}

func TestAuthStateRoundTrip(t *testing.T) {
	m := newTestManager(t)

	cookies := []Cookie{
		{Name: "sid", Value: "abc123", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "pref", Value: "dark"},
	}
	require.NoError(t, m.SaveAuthState("example", cookies))

	state, ok := m.LoadAuthState("example")
	require.True(t, ok)
	assert.Equal(t, cookies, state.Cookies)
	assert.InDelta(t, time.Now().Unix(), state.Timestamp, 5)
}

func TestLoadAuthStateMissing(t *testing.T) {
	m := newTestManager(t)

	state, ok := m.LoadAuthState("never-saved")
	assert.False(t, ok)
	assert.Nil(t, state)
}

func TestLoadAuthStateExpired(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "sid", Value: "x"}}))

	// Re-encrypt the same state with a timestamp 8 days in the past. The
	// blob still decrypts and parses; only the age check should reject it.
	key, err := m.loadKey()
	require.NoError(t, err)
	stale := AuthState{
		Cookies:   []Cookie{{Name: "sid", Value: "x"}},
		Timestamp: time.Now().Add(-8 * 24 * time.Hour).Unix(),
	}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	token, err := fernet.EncryptAndSign(payload, key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.authFile("example"), token, 0o600))

	state, ok := m.LoadAuthState("example")
	assert.False(t, ok)
	assert.Nil(t, state)
}

func TestLoadAuthStateCorruptCiphertext(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "sid", Value: "x"}}))
	require.NoError(t, os.WriteFile(m.authFile("example"), []byte("not a fernet token"), 0o600))

	state, ok := m.LoadAuthState("example")
	assert.False(t, ok)
	assert.Nil(t, state)
}

func TestLoadAuthStateWrongKey(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "sid", Value: "x"}}))

	// Replace the profile key; the existing blob must become unreadable.
	var other fernet.Key
	require.NoError(t, other.Generate())
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, keyFileName), []byte(other.Encode()), 0o600))

	_, ok := m.LoadAuthState("example")
	assert.False(t, ok)
}

func TestLoadAuthStateReturnsCopy(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "sid", Value: "orig"}}))

	first, ok := m.LoadAuthState("example")
	require.True(t, ok)
	first.Cookies[0].Value = "mutated"

	second, ok := m.LoadAuthState("example")
	require.True(t, ok)
	assert.Equal(t, "orig", second.Cookies[0].Value)
}

func TestKeyCreatedOnceAndStable(t *testing.T) {
	m := newTestManager(t)

	k1, err := m.getOrCreateKey()
	require.NoError(t, err)
	k2, err := m.getOrCreateKey()
	require.NoError(t, err)
	assert.Equal(t, k1.Encode(), k2.Encode())

	// Saved state survives additional key lookups.
	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "a", Value: "b"}}))
	_, ok := m.LoadAuthState("example")
	assert.True(t, ok)
}

func TestClearAuthState(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "a", Value: "b"}}))
	require.NoError(t, m.ClearAuthState("example"))

	_, ok := m.LoadAuthState("example")
	assert.False(t, ok)

	require.NoError(t, m.ClearAuthState("example"))
}

func TestSaveLeavesNoPartialArtifacts(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SaveAuthState("example", []Cookie{{Name: "a", Value: "b"}}))

	entries, err := os.ReadDir(m.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{".key", "example_auth.enc"}, names)
}
