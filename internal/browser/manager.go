// File: internal/browser/manager.go

// Package browser handles the browser process lifecycle and exposes page-level
// sessions driven over CDP.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/browser/relay"
	"github.com/xkilldash9x/magpie/internal/browser/stealth"
	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/humanoid"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the Chrome process allocator and creates sessions against it.
type Manager struct {
	logger  *zap.Logger
	cfg     *config.Config
	persona stealth.Persona

	allocCtx    context.Context
	allocCancel context.CancelFunc
	relay       *relay.Relay

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. The Chrome process is not started
// until the first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		persona:  stealth.DefaultPersona,
		sessions: make(map[string]*Session),
	}
}

// initialize resolves the proxy, builds the allocator options, and starts the
// exec allocator. Runs once; later calls return the recorded error.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Initializing browser allocator.")

		proxyAddr, r, err := relay.Resolve(m.cfg.Network.Proxy, m.logger)
		if err != nil {
			m.initErr = fmt.Errorf("failed to resolve proxy configuration: %w", err)
			return
		}
		m.relay = r

		opts := m.allocatorOptions(proxyAddr)
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(Detach(ctx), opts...)
	})
	return m.initErr
}

// allocatorOptions assembles the Chrome launch flags. The automation-hiding
// flags matter as much as the script-level evasions: the target site checks
// navigator.webdriver, which headless Chrome sets unless Blink's
// AutomationControlled feature is disabled.
func (m *Manager) allocatorOptions(proxyAddr string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(m.persona.UserAgent),
		chromedp.WindowSize(m.cfg.Browser.ViewportWidth, m.cfg.Browser.ViewportHeight),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if m.cfg.Browser.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if proxyAddr != "" {
		opts = append(opts, chromedp.ProxyServer(proxyAddr))
	}
	for _, arg := range m.cfg.Browser.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewSession creates a new browser tab wrapped in a Session, with the stealth
// persona applied before any navigation.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	var human *humanoid.Humanoid
	if m.cfg.Browser.Humanoid.Enabled {
		human = humanoid.New(m.cfg.Browser.Humanoid, m.logger)
	}

	s := newSession(tabCtx, tabCancel, m.cfg, human, m.logger)

	m.wg.Add(1)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", s.ID()))
	}

	// Applying the persona also launches the browser process on first use.
	if err := chromedp.Run(tabCtx, stealth.Apply(m.persona, m.logger)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes all sessions, stops the browser process, and tears down the
// proxy relay if one was started.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	for _, s := range open {
		go s.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	grace, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	select {
	case <-done:
		m.logger.Info("All sessions closed.")
	case <-grace.Done():
		m.logger.Warn("Timeout waiting for sessions to close.", zap.Error(grace.Err()))
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	if m.relay != nil {
		if err := m.relay.Close(); err != nil {
			m.logger.Warn("Error closing proxy relay.", zap.Error(err))
		}
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
