// File: internal/auth/state_test.go
package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testState() *AuthState {
	return &AuthState{
		Cookies: []*network.CookieParam{
			{Name: "auth_token", Value: "abc123", Domain: ".x.com", Path: "/", Secure: true, HTTPOnly: true},
			{Name: "ct0", Value: "csrf", Domain: ".x.com", Path: "/"},
		},
		LocalStorage:   map[string]string{"device_id": "d-1"},
		SessionStorage: map[string]string{"flash": "1"},
		SavedAt:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "authstate.json")

	require.NoError(t, SaveState(path, testState()))

	st := LoadState(path, zap.NewNop())
	require.NotNil(t, st)
	assert.Len(t, st.Cookies, 2)
	assert.Equal(t, "auth_token", st.Cookies[0].Name)
	assert.Equal(t, map[string]string{"device_id": "d-1"}, st.LocalStorage)
	assert.True(t, st.SavedAt.Equal(testState().SavedAt))
}

func TestSaveStateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authstate.json")

	require.NoError(t, SaveState(path, testState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "authstate.json", entries[0].Name())
}

func TestSaveStateOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authstate.json")
	require.NoError(t, SaveState(path, testState()))

	updated := testState()
	updated.Cookies = updated.Cookies[:1]
	require.NoError(t, SaveState(path, updated))

	st := LoadState(path, zap.NewNop())
	require.NotNil(t, st)
	assert.Len(t, st.Cookies, 1, "state is overwritten wholesale, never merged")
}

func TestLoadStateMissingFile(t *testing.T) {
	assert.Nil(t, LoadState(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop()))
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authstate.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	assert.Nil(t, LoadState(path, zap.NewNop()), "corrupt state behaves as absent")
}

func TestLoadStateEmptyCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authstate.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cookies":[]}`), 0o600))

	assert.Nil(t, LoadState(path, zap.NewNop()), "a snapshot without cookies cannot restore a session")
}

func TestCookieParams(t *testing.T) {
	cookies := []*network.Cookie{
		{Name: "a", Value: "1", Domain: ".x.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1790000000},
		{Name: "b", Value: "2", Domain: ".x.com", Path: "/", Expires: -1},
	}

	params := CookieParams(cookies)
	require.Len(t, params, 2)

	require.NotNil(t, params[0].Expires)
	assert.True(t, params[0].Secure)
	assert.Nil(t, params[1].Expires, "session cookies carry no expiry")
}
