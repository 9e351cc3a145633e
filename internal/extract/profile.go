// File: internal/extract/profile.go
package extract

import (
	"context"
	"errors"
)

// Evaluator abstracts script evaluation against the current document.
// browser.Session implements it.
type Evaluator interface {
	CallFunction(ctx context.Context, fn string, res interface{}, args ...interface{}) error
}

// ErrNoProfile reports that the current page carries no recognizable profile
// header.
var ErrNoProfile = errors.New("no profile header on the current page")

// HarvestProfile reads the profile header of the page the evaluator is
// currently on and maps it to a Record. The caller is expected to have
// navigated to the profile URL first.
func HarvestProfile(ctx context.Context, page Evaluator) (*Record, error) {
	var raw RawProfile
	if err := page.CallFunction(ctx, HarvestProfileJS, &raw); err != nil {
		return nil, err
	}
	rec := FromRawProfile(raw)
	if rec == nil {
		return nil, ErrNoProfile
	}
	return rec, nil
}
