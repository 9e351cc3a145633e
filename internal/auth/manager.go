// File: internal/auth/manager.go

// Package auth owns the authenticated-session lifecycle: restoring a
// persisted AuthState into a fresh browser context, running the login state
// machine when the restored state is not (or no longer) valid, and persisting
// the resulting snapshot.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/locator"
)

// Session is the full browser surface an acquired session exposes: the
// login-flow page operations, state capture and teardown, and the feed
// driving used downstream. browser.Session implements it.
type Session interface {
	Page
	ID() string
	Reload(ctx context.Context) error
	ScrollToBottom(ctx context.Context) error
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.CookieParam) error
	CaptureStorage(ctx context.Context, kind string) (map[string]string, error)
	RestoreStorage(ctx context.Context, kind string, items map[string]string) error
	Close()
}

// SessionFactory creates a fresh browser session.
type SessionFactory func(ctx context.Context) (Session, error)

// Manager acquires and releases authenticated sessions.
type Manager struct {
	cfg        *config.Config
	newSession SessionFactory
	resolver   *locator.Resolver
	logger     *zap.Logger

	// login collapses concurrent login attempts for the same session: at most
	// one login run may be in flight per session.
	login singleflight.Group
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, factory SessionFactory, resolver *locator.Resolver, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		newSession: factory,
		resolver:   resolver,
		logger:     logger.Named("auth"),
	}
}

// Acquire returns a live authenticated session. It restores the persisted
// AuthState when one exists, verifies authentication against the feed home,
// logs in fresh when the restored state is rejected, and persists the new
// snapshot on success. The session is closed on every failure path; the
// caller owns it only on success and must Release it.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	s, err := m.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create browser session: %w", err)
	}

	if err := m.authenticate(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Release tears the session down. Callers defer this immediately after a
// successful Acquire so teardown runs on every exit path.
func (m *Manager) Release(s Session) {
	if s != nil {
		s.Close()
	}
}

func (m *Manager) authenticate(ctx context.Context, s Session) error {
	st := m.restore(ctx, s)

	if err := s.Navigate(ctx, m.cfg.HomeURL()); err != nil {
		return err
	}
	if st != nil {
		// Storage can only be written against a loaded document of the target
		// origin, so the restore completes after the first navigation.
		if err := m.restoreStorage(ctx, s, st); err != nil {
			return err
		}
	}

	authed, err := m.isAuthenticated(ctx, s)
	if err != nil {
		return err
	}
	if authed {
		m.logger.Info("Restored session is authenticated.", zap.String("session_id", s.ID()))
		return nil
	}

	m.logger.Info("Session not authenticated, running login flow.", zap.String("session_id", s.ID()))

	if _, err, _ := m.login.Do(s.ID(), func() (interface{}, error) {
		flow := newLoginFlow(m.cfg, m.resolver, s, m.logger)
		return nil, flow.Run(ctx)
	}); err != nil {
		return err
	}

	return m.persist(ctx, s)
}

// restore installs the persisted cookies into the fresh session and returns
// the snapshot for the storage restore that follows navigation. Nil means no
// usable snapshot existed.
func (m *Manager) restore(ctx context.Context, s Session) *AuthState {
	st := LoadState(m.cfg.Session.StateFile, m.logger)
	if st == nil {
		return nil
	}

	if err := s.SetCookies(ctx, st.Cookies); err != nil {
		m.logger.Warn("Could not restore cookies, proceeding to fresh login.", zap.Error(err))
		return nil
	}
	m.logger.Debug("Auth state restored.",
		zap.Int("cookies", len(st.Cookies)),
		zap.Time("saved_at", st.SavedAt))
	return st
}

func (m *Manager) restoreStorage(ctx context.Context, s Session, st *AuthState) error {
	if err := s.RestoreStorage(ctx, "local", st.LocalStorage); err != nil {
		return err
	}
	if err := s.RestoreStorage(ctx, "session", st.SessionStorage); err != nil {
		return err
	}
	if len(st.LocalStorage) > 0 || len(st.SessionStorage) > 0 {
		// Reload so the app boots with the restored storage visible.
		return s.Reload(ctx)
	}
	return nil
}

// persist snapshots the session and overwrites the AuthState file.
func (m *Manager) persist(ctx context.Context, s Session) error {
	cookies, err := s.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("could not capture cookies: %w", err)
	}

	local, err := s.CaptureStorage(ctx, "local")
	if err != nil {
		m.logger.Warn("Could not capture local storage.", zap.Error(err))
	}
	session, err := s.CaptureStorage(ctx, "session")
	if err != nil {
		m.logger.Warn("Could not capture session storage.", zap.Error(err))
	}

	st := &AuthState{
		Cookies:        CookieParams(cookies),
		LocalStorage:   local,
		SessionStorage: session,
		SavedAt:        time.Now(),
	}
	if err := SaveState(m.cfg.Session.StateFile, st); err != nil {
		return fmt.Errorf("could not persist auth state: %w", err)
	}

	m.logger.Info("Auth state persisted.",
		zap.String("path", m.cfg.Session.StateFile),
		zap.Int("cookies", len(st.Cookies)))
	return nil
}

// isAuthenticated mirrors the login flow's check: home URL or home marker.
func (m *Manager) isAuthenticated(ctx context.Context, s Session) (bool, error) {
	flow := newLoginFlow(m.cfg, m.resolver, s, m.logger)
	return flow.isAuthenticated(ctx)
}
