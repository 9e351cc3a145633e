// File: internal/monitor/monitor.go

// Package monitor polls a feed and delivers only newly-appeared items. The
// first pagination run seeds the seen-set silently; every later tick reloads
// the feed, re-paginates, and emits the set difference in first-seen order.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/extract"
	"github.com/xkilldash9x/magpie/internal/paginate"
)

// FeedPage adds reload to the pagination surface. browser.Session
// implements it.
type FeedPage interface {
	paginate.FeedPage
	Reload(ctx context.Context) error
}

// Callback receives newly-appeared records, in first-seen order. Invoked
// only when at least one new record exists.
type Callback func(records []extract.Record)

// Monitor wraps the pagination engine in a polling loop.
type Monitor struct {
	engine *paginate.Engine
	logger *zap.Logger
}

// New creates a feed monitor around the given engine.
func New(engine *paginate.Engine, logger *zap.Logger) *Monitor {
	return &Monitor{engine: engine, logger: logger.Named("monitor")}
}

// Start launches the polling loop and returns a stop function plus a channel
// that closes when the loop exits. Stopping is cooperative: the flag is
// checked between ticks, an in-flight tick always completes, and the stop
// function blocks until the loop has exited. Stop is safe to call more than
// once. The done channel also closes when the loop dies on its own, such as a
// failed seed run, so callers can notice without calling stop.
func (m *Monitor) Start(
	ctx context.Context,
	page FeedPage,
	kind extract.Kind,
	budget paginate.Budget,
	pollInterval time.Duration,
	onNewItems Callback,
) (stop func(), done <-chan struct{}) {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go m.loop(ctx, page, kind, budget, pollInterval, onNewItems, stopCh, doneCh)

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-doneCh
	}, doneCh
}

func (m *Monitor) loop(
	ctx context.Context,
	page FeedPage,
	kind extract.Kind,
	budget paginate.Budget,
	pollInterval time.Duration,
	onNewItems Callback,
	stopCh <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

	seen := make(map[string]struct{})

	// Seed run: populate the seen-set without emitting, so pre-existing items
	// are not all reported as new on the first real tick.
	records, _, err := m.engine.Run(ctx, page, kind, budget)
	if err != nil {
		m.logger.Error("Seed run failed, monitor stopping.", zap.Error(err))
		return
	}
	for _, r := range records {
		seen[r.ID] = struct{}{}
	}
	m.logger.Info("Feed monitor seeded.", zap.Int("known_items", len(seen)))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			m.logger.Info("Feed monitor stopped.")
			return
		case <-ctx.Done():
			m.logger.Info("Feed monitor context ended.", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
		}

		if err := m.tick(ctx, page, kind, budget, seen, onNewItems); err != nil {
			if ctx.Err() != nil {
				return
			}
			// One failed tick does not kill the monitor; the feed may recover.
			m.logger.Warn("Monitor tick failed.", zap.Error(err))
		}
	}
}

// tick reloads the feed, re-paginates, and emits the records not yet seen.
func (m *Monitor) tick(
	ctx context.Context,
	page FeedPage,
	kind extract.Kind,
	budget paginate.Budget,
	seen map[string]struct{},
	onNewItems Callback,
) error {
	if err := page.Reload(ctx); err != nil {
		return err
	}

	records, _, err := m.engine.Run(ctx, page, kind, budget)
	if err != nil {
		return err
	}

	var fresh []extract.Record
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}

	if len(fresh) > 0 {
		m.logger.Info("New items detected.", zap.Int("count", len(fresh)))
		onNewItems(fresh)
	}
	return nil
}
