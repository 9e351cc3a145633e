// File: internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newSession(ctx, cancel, config.NewDefaultConfig(), nil, zap.NewNop())
}

func TestSessionIDIsStable(t *testing.T) {
	s := newTestSession(t)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, s.ID(), s.ID())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)

	calls := 0
	s.onClose = func() { calls++ }

	s.Close()
	s.Close()
	s.Close()

	assert.Equal(t, 1, calls, "onClose must fire exactly once")
	assert.Error(t, s.ctx.Err(), "tab context must be canceled after Close")
}

func TestCombineContextCancelsWithOperationalContext(t *testing.T) {
	tabCtx, tabCancel := context.WithCancel(context.Background())
	defer tabCancel()

	opCtx, opCancel := context.WithCancel(context.Background())

	combined, cancel := CombineContext(tabCtx, opCtx)
	defer cancel()

	opCancel()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe operational cancellation")
	}
	assert.NoError(t, tabCtx.Err(), "tab context must stay alive")
}

func TestDetachOutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached := Detach(parent)
	cancel()

	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
}
