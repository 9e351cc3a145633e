// File: internal/humanoid/scroll.go
package humanoid

import (
	"context"
	"strconv"

	"github.com/chromedp/chromedp"
)

// ScrollToBottom scrolls the viewport to the current bottom of the document in
// a few uneven steps, the way a person flicks through a feed, finishing with a
// settle pause so lazy-loaded content has a moment to render.
func (h *Humanoid) ScrollToBottom() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		steps := 2 + h.intn(3)
		for i := 0; i < steps; i++ {
			frac := float64(i+1) / float64(steps)
			script := scrollScript(frac)
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(h.normalDuration(220, 90, 60)).Do(ctx); err != nil {
				return err
			}
		}
		// Pin to the true bottom in case the page grew mid-gesture.
		if err := chromedp.Evaluate(scrollScript(1), nil).Do(ctx); err != nil {
			return err
		}
		return h.CognitivePause(400, 150).Do(ctx)
	})
}

func scrollScript(frac float64) string {
	if frac >= 1 {
		return `window.scrollTo({top: document.body.scrollHeight, behavior: "smooth"});`
	}
	return `window.scrollTo({top: document.body.scrollHeight * ` +
		strconv.FormatFloat(frac, 'f', 3, 64) + `, behavior: "smooth"});`
}
