// File: internal/auth/state.go
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuthState is the serializable snapshot of an authenticated browser session:
// the cookie jar plus both storage areas. It is overwritten wholesale on
// every successful (re-)authentication, never merged.
type AuthState struct {
	Cookies        []*network.CookieParam `json:"cookies"`
	LocalStorage   map[string]string      `json:"local_storage,omitempty"`
	SessionStorage map[string]string      `json:"session_storage,omitempty"`
	SavedAt        time.Time              `json:"saved_at"`
}

// LoadState reads a persisted AuthState. A missing, unreadable, or corrupt
// file all mean the same thing to the caller: no usable session, log in
// fresh. That is why this returns nil instead of an error.
func LoadState(path string, logger *zap.Logger) *AuthState {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not read auth state file.", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var st AuthState
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warn("Auth state file is corrupt, treating as absent.",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	if len(st.Cookies) == 0 {
		return nil
	}
	return &st
}

// SaveState persists the AuthState atomically: the snapshot is written to a
// temp file in the target directory and renamed over the destination, so a
// crash mid-write can never corrupt a later restore.
func SaveState(path string, st *AuthState) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal auth state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".authstate-*")
	if err != nil {
		return fmt.Errorf("could not create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write auth state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not set state file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not replace auth state file: %w", err)
	}
	return nil
}

// CookieParams converts browser cookies into the settable parameter form,
// preserving expiry and same-site attributes.
func CookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return params
}
