// File: internal/locator/resolver.go
package locator

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// pollInterval paces WaitVisible re-checks of a chain.
const pollInterval = 250 * time.Millisecond

// visibleProbeJS reports whether the first element matching the selector is
// both present and visually visible in the current document.
const visibleProbeJS = `
(selector) => {
	let el;
	try {
		el = document.querySelector(selector);
	} catch (e) {
		return false; // Malformed selector behaves as a miss, not a crash.
	}
	if (!el) {
		return false;
	}
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') {
		return false;
	}
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}
`

// Result is the outcome of one resolution attempt. Absence is a value, not an
// error: callers decide whether NotFound is fatal for their step.
type Result struct {
	Found bool
	// Selector is the winning selector when Found is true, usable with any
	// ByQuery chromedp action.
	Selector string
	// Index is the position of the winning selector within the chain.
	Index int
}

// NotFound is the zero Result, returned after a chain is exhausted.
var NotFound = Result{}

// Evaluator abstracts script evaluation against the current document. It is
// satisfied by browser.Session and by test fakes.
type Evaluator interface {
	CallFunction(ctx context.Context, fn string, res interface{}, args ...interface{}) error
}

// Resolver tries each selector of a role's chain in order and reports the
// first visible match.
type Resolver struct {
	chains Chains
	logger *zap.Logger
}

// NewResolver creates a Resolver over the given chains.
func NewResolver(chains Chains, logger *zap.Logger) *Resolver {
	if chains == nil {
		chains = Defaults()
	}
	return &Resolver{chains: chains, logger: logger.Named("locator")}
}

// Chain returns the configured chain for a role. The returned slice must be
// treated as read-only.
func (r *Resolver) Chain(role Role) []string {
	return r.chains[role]
}

// Resolve attempts each selector of the role's chain against the current
// document. It returns the first visible match, or NotFound after exhausting
// the chain. The only error conditions are context cancellation and a broken
// driver connection; a missing element is never an error.
func (r *Resolver) Resolve(ctx context.Context, page Evaluator, role Role) (Result, error) {
	chain := r.chains[role]
	if len(chain) == 0 {
		r.logger.Warn("No locator chain configured for role.", zap.String("role", string(role)))
		return NotFound, nil
	}

	for i, selector := range chain {
		select {
		case <-ctx.Done():
			return NotFound, ctx.Err()
		default:
		}

		var visible bool
		if err := page.CallFunction(ctx, visibleProbeJS, &visible, selector); err != nil {
			if ctx.Err() != nil {
				return NotFound, ctx.Err()
			}
			// Evaluation failures on one candidate do not condemn the chain.
			r.logger.Debug("Locator probe failed.",
				zap.String("role", string(role)),
				zap.String("selector", selector),
				zap.Error(err))
			continue
		}
		if visible {
			r.logger.Debug("Locator resolved.",
				zap.String("role", string(role)),
				zap.String("selector", selector),
				zap.Int("index", i))
			return Result{Found: true, Selector: selector, Index: i}, nil
		}
	}

	r.logger.Debug("Locator chain exhausted.", zap.String("role", string(role)))
	return NotFound, nil
}

// WaitVisible blocks until the role resolves or the context expires. It polls
// the chain rather than waiting on a single selector so that any candidate
// appearing satisfies the wait.
func (r *Resolver) WaitVisible(ctx context.Context, page Evaluator, role Role) (Result, error) {
	for {
		res, err := r.Resolve(ctx, page, role)
		if err != nil {
			return NotFound, err
		}
		if res.Found {
			return res, nil
		}
		if err := chromedp.Sleep(pollInterval).Do(ctx); err != nil {
			return NotFound, err
		}
	}
}
