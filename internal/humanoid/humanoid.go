// File: internal/humanoid/humanoid.go

// Package humanoid generates human-like input: typing with realistic inter-key
// cadence and occasional self-corrected typos, cognitive pauses, and scroll
// gestures. Every public method returns a chromedp.Action so callers compose
// them into ordinary task lists.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
)

// Humanoid manages the state and execution of human-like interactions.
type Humanoid struct {
	cfg    config.HumanoidConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Humanoid with the given configuration.
func New(cfg config.HumanoidConfig, logger *zap.Logger) *Humanoid {
	return newWithRand(cfg, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newWithRand(cfg config.HumanoidConfig, logger *zap.Logger, rng *rand.Rand) *Humanoid {
	return &Humanoid{
		cfg:    cfg,
		logger: logger.Named("humanoid"),
		rng:    rng,
	}
}

// Click focuses and clicks the element with a short planning pause first.
func (h *Humanoid) Click(selector string) chromedp.Action {
	return chromedp.Tasks{
		h.CognitivePause(180, 60),
		chromedp.Click(selector, chromedp.ByQuery),
	}
}

// CognitivePause sleeps for a normally distributed duration, modeling the
// think-time between user actions.
func (h *Humanoid) CognitivePause(meanMs, stdDevMs float64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Sleep(h.normalDuration(meanMs, stdDevMs, meanMs/3)).Do(ctx)
	})
}

// normalDuration samples N(mean, stdDev) milliseconds, clamped below by min.
func (h *Humanoid) normalDuration(meanMs, stdDevMs, minMs float64) time.Duration {
	h.mu.Lock()
	sample := h.rng.NormFloat64()*stdDevMs + meanMs
	h.mu.Unlock()

	if sample < minMs {
		sample = minMs
	}
	return time.Duration(sample) * time.Millisecond
}

// chance reports true with probability p.
func (h *Humanoid) chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

// pick returns a random element of the candidate string.
func (h *Humanoid) pick(candidates string) rune {
	h.mu.Lock()
	defer h.mu.Unlock()
	return rune(candidates[h.rng.Intn(len(candidates))])
}

func (h *Humanoid) intn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Intn(n)
}
