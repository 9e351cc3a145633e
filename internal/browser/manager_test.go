// File: internal/browser/manager_test.go
package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
)

func TestNewManagerDefersInitialization(t *testing.T) {
	m := NewManager(config.NewDefaultConfig(), zap.NewNop())
	require.NotNil(t, m)
	assert.Nil(t, m.allocCtx, "allocator must not start before the first session")
	assert.Empty(t, m.sessions)
}

func TestAllocatorOptionsIncludeProxy(t *testing.T) {
	m := NewManager(config.NewDefaultConfig(), zap.NewNop())

	withProxy := m.allocatorOptions("http://127.0.0.1:8080")
	without := m.allocatorOptions("")
	assert.Len(t, withProxy, len(without)+1)
}

func TestAllocatorOptionsRespectHeadless(t *testing.T) {
	cfg := config.NewDefaultConfig()

	cfg.Browser.Headless = true
	headless := NewManager(cfg, zap.NewNop()).allocatorOptions("")

	headfulCfg := config.NewDefaultConfig()
	headfulCfg.Browser.Headless = false
	headful := NewManager(headfulCfg, zap.NewNop()).allocatorOptions("")

	// Headless adds disable-gpu on top of the shared flag set.
	assert.Len(t, headless, len(headful)+1)
}

func TestShutdownWithoutInitialization(t *testing.T) {
	m := NewManager(config.NewDefaultConfig(), zap.NewNop())
	assert.NoError(t, m.Shutdown(context.Background()))
}
