// File: internal/auth/login.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/locator"
)

// State names one step of the login state machine.
type State string

const (
	StateEnteringIdentifier    State = "entering_identifier"
	StateSecondaryVerification State = "secondary_verification"
	StateSecurityChallenge     State = "security_challenge"
	StateEnteringPassword      State = "entering_password"
	StateSubmitting            State = "submitting"
	StateAuthenticated         State = "authenticated"
	StateFailed                State = "failed"
)

// Page is the browser surface the login flow drives. browser.Session
// implements it.
type Page interface {
	locator.Evaluator
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	ClearValue(ctx context.Context, selector string) error
	Sleep(ctx context.Context, d time.Duration) error
}

// rawPasswordScanJS is the last-resort password field strategy: a breadth
// scan over every password-typed input in the document, ignoring the
// configured chains entirely.
const rawPasswordScanJS = `() => {
	const inputs = document.querySelectorAll('input[type="password"]');
	for (const el of inputs) {
		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none') {
			continue;
		}
		const rect = el.getBoundingClientRect();
		if (rect.width > 0 && rect.height > 0) {
			return true;
		}
	}
	return false;
}`

const settleDelay = 1200 * time.Millisecond
const submitPollInterval = 500 * time.Millisecond

// loginFlow runs the multi-step branching login. Transitions are driven by
// detection: optional steps run only when their marker is present in the
// document, so an attempt that skips verification does not hang waiting for
// it and an attempt that includes it is not skipped past.
type loginFlow struct {
	cfg      *config.Config
	resolver *locator.Resolver
	page     Page
	logger   *zap.Logger

	visited []State
}

func newLoginFlow(cfg *config.Config, resolver *locator.Resolver, page Page, logger *zap.Logger) *loginFlow {
	return &loginFlow{
		cfg:      cfg,
		resolver: resolver,
		page:     page,
		logger:   logger.Named("login"),
	}
}

func (f *loginFlow) enter(s State) {
	f.visited = append(f.visited, s)
	f.logger.Info("Login state entered.", zap.String("state", string(s)))
}

// Run drives the flow to Authenticated or returns the failure. The page ends
// on the authenticated home on success.
func (f *loginFlow) Run(ctx context.Context) error {
	if err := f.page.Navigate(ctx, f.cfg.LoginURL()); err != nil {
		return err
	}

	if err := f.enterIdentifier(ctx); err != nil {
		return err
	}
	if err := f.maybeVerifySecondary(ctx); err != nil {
		return err
	}
	if err := f.maybeClearChallenge(ctx); err != nil {
		return err
	}
	if err := f.enterPassword(ctx); err != nil {
		return err
	}
	return f.submit(ctx)
}

func (f *loginFlow) enterIdentifier(ctx context.Context) error {
	f.enter(StateEnteringIdentifier)

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.Network.SubmitTimeout)
	res, err := f.resolver.WaitVisible(waitCtx, f.page, locator.RoleIdentifierField)
	cancel()
	if err != nil || !res.Found {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFlowError(StateEnteringIdentifier, ReasonIdentifierFieldMissing,
			"identifier field never appeared")
	}

	if err := f.page.Type(ctx, res.Selector, f.cfg.Account.Identifier); err != nil {
		return err
	}

	next, err := f.resolver.Resolve(ctx, f.page, locator.RoleIdentifierNext)
	if err != nil {
		return err
	}
	if !next.Found {
		return newFlowError(StateEnteringIdentifier, ReasonIdentifierFieldMissing,
			"advance control not found")
	}
	if err := f.page.Click(ctx, next.Selector); err != nil {
		return err
	}
	return f.page.Sleep(ctx, settleDelay)
}

// maybeVerifySecondary handles the optional email/phone verification screen.
// The step runs only when its input is detected; a missing marker means the
// site skipped it for this attempt.
func (f *loginFlow) maybeVerifySecondary(ctx context.Context) error {
	res, err := f.resolver.Resolve(ctx, f.page, locator.RoleVerificationField)
	if err != nil {
		return err
	}
	if !res.Found {
		return nil
	}

	f.enter(StateSecondaryVerification)

	if f.cfg.Account.SecondaryIdentifier == "" {
		return newFlowError(StateSecondaryVerification, ReasonVerificationRequiredNoFallback,
			"site asked for verification but no secondary identifier is configured")
	}
	if err := f.page.Type(ctx, res.Selector, f.cfg.Account.SecondaryIdentifier); err != nil {
		return err
	}

	next, err := f.resolver.Resolve(ctx, f.page, locator.RoleVerificationNext)
	if err != nil {
		return err
	}
	if next.Found {
		if err := f.page.Click(ctx, next.Selector); err != nil {
			return err
		}
	}
	return f.page.Sleep(ctx, settleDelay)
}

// maybeClearChallenge attempts the optional security challenge screen. This
// is best effort: one pass over the continue controls, then a re-check. A
// challenge that survives the pass is unresolvable, not worth retrying
// forever.
func (f *loginFlow) maybeClearChallenge(ctx context.Context) error {
	marker, err := f.resolver.Resolve(ctx, f.page, locator.RoleChallengeMarker)
	if err != nil {
		return err
	}
	if !marker.Found {
		return nil
	}

	f.enter(StateSecurityChallenge)

	cont, err := f.resolver.Resolve(ctx, f.page, locator.RoleChallengeContinue)
	if err != nil {
		return err
	}
	if cont.Found {
		if err := f.page.Click(ctx, cont.Selector); err != nil {
			return err
		}
		if err := f.page.Sleep(ctx, settleDelay); err != nil {
			return err
		}
	}

	still, err := f.resolver.Resolve(ctx, f.page, locator.RoleChallengeMarker)
	if err != nil {
		return err
	}
	if still.Found {
		return newFlowError(StateSecurityChallenge, ReasonChallengeUnresolvable,
			"challenge marker still present after continue attempt")
	}
	return nil
}

func (f *loginFlow) enterPassword(ctx context.Context) error {
	f.enter(StateEnteringPassword)

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.Network.SubmitTimeout)
	res, err := f.resolver.WaitVisible(waitCtx, f.page, locator.RolePasswordField)
	cancel()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	selector := res.Selector
	if !res.Found {
		// Last resort: scan the whole document for any visible password input.
		var visible bool
		if err := f.page.CallFunction(ctx, rawPasswordScanJS, &visible); err != nil {
			return err
		}
		if !visible {
			return newFlowError(StateEnteringPassword, ReasonPasswordFieldMissing,
				"no password input found by chain or raw scan")
		}
		selector = `input[type="password"]`
		f.logger.Warn("Password field found only by raw scan, locator chains may have drifted.")
	}

	// The site sometimes prefills the field after a failed attempt.
	if err := f.page.ClearValue(ctx, selector); err != nil {
		return err
	}
	return f.page.Type(ctx, selector, f.cfg.Account.Password)
}

// submit activates the login control and races three outcomes within the
// submit timeout: arrival at the authenticated home, a wrong-credentials
// marker, or a generic alert. No outcome within the window is a timeout
// failure.
func (f *loginFlow) submit(ctx context.Context) error {
	f.enter(StateSubmitting)

	btn, err := f.resolver.Resolve(ctx, f.page, locator.RoleLoginSubmit)
	if err != nil {
		return err
	}
	if !btn.Found {
		return newFlowError(StateSubmitting, ReasonTimeout, "login control not found")
	}
	if err := f.page.Click(ctx, btn.Selector); err != nil {
		return err
	}

	deadline := time.Now().Add(f.cfg.Network.SubmitTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		authed, err := f.isAuthenticated(ctx)
		if err != nil {
			return err
		}
		if authed {
			f.enter(StateAuthenticated)
			return nil
		}

		bad, err := f.resolver.Resolve(ctx, f.page, locator.RoleBadCredentials)
		if err != nil {
			return err
		}
		if bad.Found {
			f.enter(StateFailed)
			return fmt.Errorf("%w: credentials rejected", ErrAuthenticationFailed)
		}

		alert, err := f.resolver.Resolve(ctx, f.page, locator.RoleAlertMarker)
		if err != nil {
			return err
		}
		if alert.Found {
			f.enter(StateFailed)
			return fmt.Errorf("%w: alert surfaced during submit", ErrAuthenticationFailed)
		}

		if err := f.page.Sleep(ctx, submitPollInterval); err != nil {
			return err
		}
	}

	f.enter(StateFailed)
	return newFlowError(StateSubmitting, ReasonTimeout,
		"no recognizable outcome within the submit window")
}

// isAuthenticated checks both signals of the logged-in home: the URL and the
// home marker element. Either suffices.
func (f *loginFlow) isAuthenticated(ctx context.Context) (bool, error) {
	loc, err := f.page.Location(ctx)
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(loc, f.cfg.HomeURL()) {
		return true, nil
	}

	marker, err := f.resolver.Resolve(ctx, f.page, locator.RoleHomeMarker)
	if err != nil {
		return false, err
	}
	return marker.Found, nil
}
