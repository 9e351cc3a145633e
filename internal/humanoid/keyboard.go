// File: internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"fmt"
	"unicode"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// keyboardNeighbors maps each key to its physical neighbors on a QWERTY
// layout, used to pick plausible mistyped characters.
var keyboardNeighbors = map[rune]string{
	'1': "2q", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol0",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn",
	'n': "bhjm", 'm': "njk",
}

// Type simulates realistic typing into the element matched by selector. The
// element is clicked first to take focus; the caller is responsible for
// clearing any prefilled value beforehand.
func (h *Humanoid) Type(selector, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := h.Click(selector).Do(ctx); err != nil {
			return fmt.Errorf("humanoid: failed to focus %q: %w", selector, err)
		}
		// Planning pause after focusing.
		if err := h.CognitivePause(200, 80).Do(ctx); err != nil {
			return err
		}

		for _, r := range text {
			if err := h.keyPause(ctx); err != nil {
				return err
			}

			if h.cfg.TypoRate > 0 && h.chance(h.cfg.TypoRate) {
				if done, err := h.neighborTypo(ctx, r); err != nil {
					return err
				} else if done {
					continue
				}
			}

			if err := h.sendKey(ctx, r); err != nil {
				return fmt.Errorf("humanoid: failed to send key %q: %w", r, err)
			}
		}
		return nil
	})
}

// sendKey dispatches a single key to the active element with a dwell pause.
func (h *Humanoid) sendKey(ctx context.Context, key rune) error {
	action := chromedp.SendKeys("document.activeElement", string(key), chromedp.ByJSPath)
	if err := action.Do(ctx); err != nil {
		return err
	}
	return chromedp.Sleep(h.normalDuration(h.cfg.KeyHoldMeanMs, h.cfg.KeyHoldStdDevMs, 20)).Do(ctx)
}

// keyPause introduces the inter-key flight time between keystrokes.
func (h *Humanoid) keyPause(ctx context.Context) error {
	d := h.normalDuration(h.cfg.KeyDelayMeanMs, h.cfg.KeyDelayStdDevMs, 30)
	return chromedp.Sleep(d).Do(ctx)
}

// neighborTypo types an adjacent key, notices, backspaces, and types the
// intended character. Reports whether the intended character was handled.
func (h *Humanoid) neighborTypo(ctx context.Context, intended rune) (bool, error) {
	neighbors, ok := keyboardNeighbors[unicode.ToLower(intended)]
	if !ok || len(neighbors) == 0 {
		return false, nil
	}

	typo := h.pick(neighbors)
	if unicode.IsUpper(intended) {
		typo = unicode.ToUpper(typo)
	}

	if err := h.sendKey(ctx, typo); err != nil {
		return true, err
	}
	// Recognition pause before the correction.
	if err := h.CognitivePause(300, 120).Do(ctx); err != nil {
		return true, err
	}
	if err := chromedp.SendKeys("document.activeElement", kb.Backspace, chromedp.ByJSPath).Do(ctx); err != nil {
		return true, err
	}
	if err := h.keyPause(ctx); err != nil {
		return true, err
	}
	if err := h.sendKey(ctx, intended); err != nil {
		return true, err
	}
	return true, nil
}
