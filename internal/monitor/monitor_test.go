// File: internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/extract"
	"github.com/xkilldash9x/magpie/internal/locator"
	"github.com/xkilldash9x/magpie/internal/paginate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFeed renders a fixed set of items; the test appends to it between
// ticks to simulate new posts appearing.
type fakeFeed struct {
	mu       sync.Mutex
	rendered []extract.RawItem
	reloads  int
	callErr  error
}

func (f *fakeFeed) CallFunction(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.callErr != nil {
		return f.callErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch out := res.(type) {
	case *bool:
		*out = len(f.rendered) > 0
	case *float64:
		*out = 1000
	case *[]extract.RawItem:
		*out = append([]extract.RawItem(nil), f.rendered...)
	}
	return nil
}

func (f *fakeFeed) ScrollToBottom(ctx context.Context) error { return ctx.Err() }

func (f *fakeFeed) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func (f *fakeFeed) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeFeed) publish(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.rendered = append(f.rendered, extract.RawItem{ID: id})
	}
}

// emissions records callback invocations.
type emissions struct {
	mu    sync.Mutex
	calls [][]string
}

func (e *emissions) callback(records []extract.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := make([]string, len(records))
	for i, r := range records {
		batch[i] = r.ID
	}
	e.calls = append(e.calls, batch)
}

func (e *emissions) snapshot() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

func newTestMonitor() *Monitor {
	engine := paginate.New(locator.NewResolver(locator.Defaults(), zap.NewNop()), zap.NewNop())
	return New(engine, zap.NewNop())
}

func feedBudget() paginate.Budget {
	return paginate.Budget{
		TargetCount: 100,
		Timeout:     50 * time.Millisecond,
		ScrollDelay: time.Millisecond,
		GrowthWait:  time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestMonitorSeedsSilentlyThenEmitsOnlyNew(t *testing.T) {
	feed := &fakeFeed{}
	feed.publish("1", "2", "3", "4", "5")

	emitted := &emissions{}
	m := newTestMonitor()

	stop, _ := m.Start(context.Background(), feed, extract.KindPost, feedBudget(),
		20*time.Millisecond, emitted.callback)
	defer stop()

	// Let the seed run and at least one tick pass with nothing new.
	waitFor(t, 5*time.Second, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.reloads >= 1
	})
	assert.Empty(t, emitted.snapshot(), "pre-existing items must not be reported as new")

	feed.publish("6", "7")
	waitFor(t, 5*time.Second, func() bool {
		return len(emitted.snapshot()) > 0
	})
	stop()

	calls := emitted.snapshot()
	require.NotEmpty(t, calls)
	assert.Equal(t, []string{"6", "7"}, calls[0], "exactly the new items, in first-seen order")
	for _, later := range calls[1:] {
		assert.Empty(t, later, "items must be emitted at most once")
	}
}

func TestMonitorStopIsIdempotentAndWaits(t *testing.T) {
	feed := &fakeFeed{}
	feed.publish("1")

	m := newTestMonitor()
	stop, _ := m.Start(context.Background(), feed, extract.KindPost, feedBudget(),
		10*time.Millisecond, func([]extract.Record) {})

	stop()
	assert.NotPanics(t, stop)
}

func TestMonitorClosesDoneOnSeedFailure(t *testing.T) {
	feed := &fakeFeed{callErr: errors.New("tab crashed")}

	m := newTestMonitor()
	stop, done := m.Start(context.Background(), feed, extract.KindPost, feedBudget(),
		10*time.Millisecond, func([]extract.Record) {})

	// The loop must die on its own and signal it without stop being called.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("done did not close after a failed seed run")
	}
	assert.NotPanics(t, stop)
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	feed := &fakeFeed{}
	feed.publish("1")

	ctx, cancel := context.WithCancel(context.Background())
	m := newTestMonitor()
	stop, _ := m.Start(ctx, feed, extract.KindPost, feedBudget(),
		10*time.Millisecond, func([]extract.Record) {})

	cancel()
	// Stop must return even though it was the context that ended the loop.
	doneCh := make(chan struct{})
	go func() {
		stop()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return after context cancellation")
	}
}
