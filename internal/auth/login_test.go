// File: internal/auth/login_test.go
package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/locator"
)

// fakePage scripts a login flow: selectors become visible or invisible as the
// flow clicks its way through, mimicking the site's screen transitions.
type fakePage struct {
	mu        sync.Mutex
	visible   map[string]bool
	pwVisible bool

	location  string
	navigated []string
	typed     map[string]string
	cleared   []string
	clicked   []string

	// onClick mutates the scripted page state after a click, keyed by
	// selector.
	onClick map[string]func(p *fakePage)
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: map[string]bool{},
		typed:   map[string]string{},
		onClick: map[string]func(p *fakePage){},
	}
}

func (p *fakePage) CallFunction(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out, ok := res.(*bool)
	if !ok {
		return nil
	}
	if len(args) == 1 {
		selector, _ := args[0].(string)
		*out = p.visible[selector]
		return nil
	}
	// Zero-arg boolean probe is the raw password scan.
	*out = p.pwVisible
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	p.location = url
	return nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.clicked = append(p.clicked, selector)
	hook := p.onClick[selector]
	p.mu.Unlock()
	if hook != nil {
		p.mu.Lock()
		hook(p)
		p.mu.Unlock()
	}
	return nil
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = text
	return nil
}

func (p *fakePage) ClearValue(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, selector)
	return nil
}

func (p *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

const (
	selIdentifier = `input[autocomplete="username"]`
	selNext       = `button[data-testid="ocfLoginNextButton"]`
	selVerify     = `input[data-testid="ocfEnterTextTextInput"]`
	selVerifyNext = `button[data-testid="ocfEnterTextNextButton"]`
	selChallenge  = `div[data-testid="LoginForm_Challenge"]`
	selContinue   = `input[type="submit"]`
	selPassword   = `input[autocomplete="current-password"]`
	selSubmit     = `button[data-testid="LoginForm_Login_Button"]`
	selBadCreds   = `div[data-testid="error-detail"]`
	selHomeMark   = `[data-testid="SideNav_NewTweet_Button"]`
)

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Account.Identifier = "jdoe"
	cfg.Account.Password = "hunter2"
	cfg.Network.SubmitTimeout = 100 * time.Millisecond
	return cfg
}

func newTestFlow(cfg *config.Config, page *fakePage) *loginFlow {
	resolver := locator.NewResolver(locator.Defaults(), zap.NewNop())
	return newLoginFlow(cfg, resolver, page, zap.NewNop())
}

// straightPage scripts a login attempt with no verification screen and no
// challenge: identifier, password, submit, home.
func straightPage(cfg *config.Config) *fakePage {
	p := newFakePage()
	p.visible[selIdentifier] = true
	p.visible[selNext] = true
	p.visible[selPassword] = true
	p.visible[selSubmit] = true
	p.onClick[selSubmit] = func(p *fakePage) {
		p.location = cfg.HomeURL()
	}
	return p
}

func TestLoginStraightThrough(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	flow := newTestFlow(cfg, page)

	require.NoError(t, flow.Run(context.Background()))

	assert.Equal(t, []State{
		StateEnteringIdentifier,
		StateEnteringPassword,
		StateSubmitting,
		StateAuthenticated,
	}, flow.visited, "optional states must be skipped when their markers are absent")

	assert.Equal(t, "jdoe", page.typed[selIdentifier])
	assert.Equal(t, "hunter2", page.typed[selPassword])
	assert.Contains(t, page.cleared, selPassword, "prefilled password must be cleared")
}

func TestLoginIdentifierFieldMissing(t *testing.T) {
	cfg := testConfig()
	page := newFakePage()
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	var flowErr *LoginFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonIdentifierFieldMissing, flowErr.Reason)
	assert.Equal(t, StateEnteringIdentifier, flowErr.State)
}

func TestLoginVerificationWithoutFallback(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.visible[selVerify] = true
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	var flowErr *LoginFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonVerificationRequiredNoFallback, flowErr.Reason)
}

func TestLoginVerificationWithFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Account.SecondaryIdentifier = "jdoe@example.com"
	page := straightPage(cfg)
	page.visible[selVerify] = true
	page.visible[selVerifyNext] = true
	flow := newTestFlow(cfg, page)

	require.NoError(t, flow.Run(context.Background()))
	assert.Equal(t, "jdoe@example.com", page.typed[selVerify])
	assert.Contains(t, flow.visited, StateSecondaryVerification)
}

func TestLoginChallengeCleared(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.visible[selChallenge] = true
	page.visible[selContinue] = true
	page.onClick[selContinue] = func(p *fakePage) {
		p.visible[selChallenge] = false
	}
	flow := newTestFlow(cfg, page)

	require.NoError(t, flow.Run(context.Background()))
	assert.Contains(t, flow.visited, StateSecurityChallenge)
}

func TestLoginChallengeUnresolvable(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.visible[selChallenge] = true
	page.visible[selContinue] = true
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	var flowErr *LoginFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonChallengeUnresolvable, flowErr.Reason)
}

func TestLoginPasswordRawScanFallback(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.visible[selPassword] = false
	page.pwVisible = true
	flow := newTestFlow(cfg, page)

	require.NoError(t, flow.Run(context.Background()))
	assert.Equal(t, "hunter2", page.typed[`input[type="password"]`])
}

func TestLoginPasswordFieldMissing(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.visible[selPassword] = false
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	var flowErr *LoginFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonPasswordFieldMissing, flowErr.Reason)
}

func TestLoginBadCredentials(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	page.onClick[selSubmit] = func(p *fakePage) {
		p.visible[selBadCreds] = true
	}
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, StateFailed, flow.visited[len(flow.visited)-1])
}

func TestLoginSubmitTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Network.SubmitTimeout = 30 * time.Millisecond
	page := straightPage(cfg)
	page.onClick[selSubmit] = func(p *fakePage) {} // nothing happens
	flow := newTestFlow(cfg, page)

	err := flow.Run(context.Background())
	var flowErr *LoginFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonTimeout, flowErr.Reason)
}

func TestLoginAuthenticatedByHomeMarker(t *testing.T) {
	cfg := testConfig()
	page := straightPage(cfg)
	// Location stays on the flow URL but the home marker renders.
	page.onClick[selSubmit] = func(p *fakePage) {
		p.visible[selHomeMark] = true
	}
	flow := newTestFlow(cfg, page)

	require.NoError(t, flow.Run(context.Background()))
	assert.False(t, strings.HasPrefix(page.location, cfg.HomeURL()))
}

func TestLoginFlowErrorMessage(t *testing.T) {
	err := newFlowError(StateEnteringPassword, ReasonPasswordFieldMissing, "drifted markup")
	assert.Contains(t, err.Error(), "entering_password")
	assert.Contains(t, err.Error(), "password_field_missing")
	assert.Contains(t, err.Error(), "drifted markup")
}
