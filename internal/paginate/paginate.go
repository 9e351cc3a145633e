// File: internal/paginate/paginate.go

// Package paginate drives scroll-and-collect cycles against an infinite feed:
// harvest the rendered items, extract and deduplicate them, scroll, wait for
// the document to grow, repeat until the count target or the time budget is
// hit. A run is restartable (fresh seen-set each call) but not resumable.
package paginate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/magpie/internal/config"
	"github.com/xkilldash9x/magpie/internal/extract"
	"github.com/xkilldash9x/magpie/internal/locator"
)

// FeedPage is the browser surface a pagination run drives. browser.Session
// implements it.
type FeedPage interface {
	locator.Evaluator
	ScrollToBottom(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Budget bounds one pagination run. The run terminates when TargetCount
// distinct identities are collected or Timeout elapses, whichever first.
type Budget struct {
	TargetCount int
	Timeout     time.Duration
	ScrollDelay time.Duration
	GrowthWait  time.Duration
}

// BudgetFromConfig maps the configured scrape defaults to a Budget.
func BudgetFromConfig(cfg config.ScrapeConfig) Budget {
	return Budget{
		TargetCount: cfg.TargetCount,
		Timeout:     cfg.Timeout,
		ScrollDelay: cfg.ScrollDelay,
		GrowthWait:  cfg.GrowthWait,
	}
}

// Outcome reports how a run terminated. Both outcomes are normal; exhaustion
// is not an error and arrives alongside whatever was collected.
type Outcome string

const (
	OutcomeTargetReached   Outcome = "target_reached"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
)

const growthPollInterval = 250 * time.Millisecond

// Engine runs pagination cycles. Stateless across runs; safe to share as
// long as each concurrent run drives a different page.
type Engine struct {
	resolver *locator.Resolver
	logger   *zap.Logger
}

// New creates a pagination engine.
func New(resolver *locator.Resolver, logger *zap.Logger) *Engine {
	return &Engine{resolver: resolver, logger: logger.Named("paginate")}
}

// Run collects up to budget.TargetCount records of the given kind from the
// feed the page is currently on. Output preserves first-seen order;
// duplicates re-rendered across scroll cycles are suppressed by identity. On
// timeout the partial result is returned with OutcomeBudgetExhausted rather
// than an error; a non-nil error means the driver or the caller's context
// failed.
func (e *Engine) Run(ctx context.Context, page FeedPage, kind extract.Kind, budget Budget) ([]extract.Record, Outcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, budget.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(budget.ScrollDelay), 1)

	seen := make(map[string]struct{})
	records := make([]extract.Record, 0, budget.TargetCount)

	for {
		collected, err := e.collect(runCtx, page, kind, seen, &records, budget.TargetCount)
		if err != nil {
			return e.finish(ctx, runCtx, records, err)
		}
		if collected {
			e.logger.Info("Target count reached.", zap.Int("records", len(records)))
			return records, OutcomeTargetReached, nil
		}

		before, err := e.documentHeight(runCtx, page)
		if err != nil {
			return e.finish(ctx, runCtx, records, err)
		}

		if err := page.ScrollToBottom(runCtx); err != nil {
			return e.finish(ctx, runCtx, records, err)
		}
		if err := limiter.Wait(runCtx); err != nil {
			return e.finish(ctx, runCtx, records, err)
		}

		// A feed that stops growing is not an error: the loop falls through
		// to re-check the termination condition with whatever is rendered.
		if err := e.awaitGrowth(runCtx, page, before, budget.GrowthWait); err != nil {
			return e.finish(ctx, runCtx, records, err)
		}
	}
}

// collect harvests the rendered items and appends the new ones. Reports
// whether the target count has been met.
func (e *Engine) collect(ctx context.Context, page FeedPage, kind extract.Kind, seen map[string]struct{}, records *[]extract.Record, target int) (bool, error) {
	selector := e.itemSelector(ctx, page)

	var raw []extract.RawItem
	withMarkup := kind == extract.KindComment
	if err := page.CallFunction(ctx, extract.HarvestItemsJS, &raw, selector, withMarkup); err != nil {
		return false, err
	}

	for _, item := range raw {
		rec := extract.FromRaw(item, kind)
		if rec == nil {
			// Promoted or identity-less items are skipped, not failed.
			e.logger.Debug("Item skipped during extraction.", zap.String("url", item.URL))
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		*records = append(*records, *rec)
		if len(*records) >= target {
			return true, nil
		}
	}
	return false, nil
}

// itemSelector resolves the feed-item role, falling back to the head of the
// chain when nothing is currently visible.
func (e *Engine) itemSelector(ctx context.Context, page FeedPage) string {
	res, err := e.resolver.Resolve(ctx, page, locator.RoleFeedItem)
	if err == nil && res.Found {
		return res.Selector
	}
	chain := e.resolver.Chain(locator.RoleFeedItem)
	if len(chain) > 0 {
		return chain[0]
	}
	return "article"
}

func (e *Engine) documentHeight(ctx context.Context, page FeedPage) (float64, error) {
	var height float64
	if err := page.CallFunction(ctx, extract.DocumentHeightJS, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// awaitGrowth waits, bounded, for the document height to exceed its
// pre-scroll value. Timing out here is normal: it means no more content is
// currently available.
func (e *Engine) awaitGrowth(ctx context.Context, page FeedPage, before float64, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		height, err := e.documentHeight(ctx, page)
		if err != nil {
			return err
		}
		if height > before {
			return nil
		}
		if err := page.Sleep(ctx, growthPollInterval); err != nil {
			return err
		}
	}
	e.logger.Debug("Document height did not grow, feed may be drained.")
	return nil
}

// finish classifies a mid-run failure: the run's own deadline expiring is a
// normal budget exhaustion and returns the partial result, anything else
// propagates alongside it.
func (e *Engine) finish(parent, run context.Context, records []extract.Record, err error) ([]extract.Record, Outcome, error) {
	exhausted := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(run.Err(), context.DeadlineExceeded)
	if exhausted && parent.Err() == nil {
		e.logger.Info("Time budget exhausted.", zap.Int("records", len(records)))
		return records, OutcomeBudgetExhausted, nil
	}
	return records, OutcomeBudgetExhausted, err
}
