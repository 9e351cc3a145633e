// File: internal/browser/stealth/stealth_test.go
package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEvasionsScriptEmbedded(t *testing.T) {
	assert.NotEmpty(t, evasionsScript)
	assert.Contains(t, evasionsScript, "webdriver")
	assert.Contains(t, evasionsScript, "plugins")
}

func TestApplyProducesTasks(t *testing.T) {
	tasks := Apply(DefaultPersona, zap.NewNop())
	// UA override, evasions injection, timezone, locale, headers.
	assert.Len(t, tasks, 5)
}

func TestAcceptLanguage(t *testing.T) {
	tests := []struct {
		name      string
		languages []string
		want      string
	}{
		{"empty falls back", nil, "en-US,en;q=0.9"},
		{"single", []string{"de-DE"}, "de-DE"},
		{"pair", []string{"en-US", "en"}, "en-US,en;q=0.9"},
		{"extra entries ignored", []string{"fr-FR", "fr", "en"}, "fr-FR,fr;q=0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := acceptLanguage(tt.languages)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasPrefix(got, ","))
		})
	}
}
