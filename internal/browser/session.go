// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/humanoid"
)

// Session wraps a single browser tab. All methods accept an operational
// context which is combined with the tab's lifecycle context, so callers can
// impose deadlines without owning the tab.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config
	human  *humanoid.Humanoid

	onClose   func()
	closeOnce sync.Once
}

func newSession(
	tabCtx context.Context,
	tabCancel context.CancelFunc,
	cfg *config.Config,
	human *humanoid.Humanoid,
	logger *zap.Logger,
) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: tabCancel,
		logger: logger.Named("session").With(zap.String("session_id", id)),
		cfg:    cfg,
		human:  human,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Context returns the tab's lifecycle context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close tears the tab down. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// run executes actions against the tab under the combined context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL and waits for the document plus a settle period. The
// settle period absorbs the client-side rendering the target site does after
// the document is ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Network.PostLoadWait),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Reload refreshes the current page and waits for it to settle.
func (s *Session) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	err := s.run(navCtx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Network.PostLoadWait),
	)
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// CallFunction evaluates a JavaScript function in the page with the given
// arguments, awaiting any returned promise, and unmarshals the result into
// res. Pass nil res to discard the result.
func (s *Session) CallFunction(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	return s.run(ctx, chromedp.CallFunctionOn(fn, res,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithAwaitPromise(true)
		},
		args...,
	))
}

// Click clicks the element matching the CSS selector, with humanized timing
// when enabled.
func (s *Session) Click(ctx context.Context, selector string) error {
	if s.human != nil {
		return s.run(ctx, s.human.Click(selector))
	}
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Type enters text into the element matching the CSS selector. With the
// humanoid enabled this types key by key with realistic cadence, otherwise it
// falls back to a plain SendKeys.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	if s.human != nil {
		return s.run(ctx, s.human.Type(selector, text))
	}
	return s.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// ClearValue empties the value of an input element. Login forms sometimes
// arrive with the field prefilled from a previous attempt.
func (s *Session) ClearValue(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.SetValue(selector, "", chromedp.ByQuery))
}

// ScrollToBottom scrolls to the current end of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	if s.human != nil {
		return s.run(ctx, s.human.ScrollToBottom())
	}
	return s.CallFunction(ctx,
		`() => { window.scrollTo(0, document.body.scrollHeight); }`, nil)
}

// Sleep pauses for the given duration, still honoring context cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return s.run(ctx, chromedp.Sleep(d))
}

// Cookies returns all cookies of the browser's storage partition, not only
// the ones scoped to the current document.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return cookies, nil
}

// SetCookies installs cookies into the browser before navigation.
func (s *Session) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	if len(cookies) == 0 {
		return nil
	}
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

const dumpStorageJS = `(kind) => {
	const store = kind === "session" ? sessionStorage : localStorage;
	const out = {};
	for (let i = 0; i < store.length; i++) {
		const key = store.key(i);
		out[key] = store.getItem(key);
	}
	return out;
}`

const restoreStorageJS = `(kind, items) => {
	const store = kind === "session" ? sessionStorage : localStorage;
	for (const [key, value] of Object.entries(items)) {
		store.setItem(key, value);
	}
}`

// CaptureStorage dumps the page's localStorage or sessionStorage. Kind is
// "local" or "session".
func (s *Session) CaptureStorage(ctx context.Context, kind string) (map[string]string, error) {
	out := map[string]string{}
	if err := s.CallFunction(ctx, dumpStorageJS, &out, kind); err != nil {
		return nil, fmt.Errorf("failed to capture %s storage: %w", kind, err)
	}
	return out, nil
}

// RestoreStorage writes entries into the page's localStorage or
// sessionStorage. Requires a document of the target origin to be loaded.
func (s *Session) RestoreStorage(ctx context.Context, kind string, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.CallFunction(ctx, restoreStorageJS, nil, kind, items); err != nil {
		return fmt.Errorf("failed to restore %s storage: %w", kind, err)
	}
	return nil
}
