// File: internal/auth/errors.go
package auth

import (
	"errors"
	"fmt"
)

// ErrAuthenticationFailed reports that the site rejected the credentials or
// surfaced an alert during submission.
var ErrAuthenticationFailed = errors.New("authentication failed")

// FlowReason identifies the specific step the login flow broke on.
type FlowReason string

const (
	ReasonIdentifierFieldMissing         FlowReason = "identifier_field_missing"
	ReasonVerificationRequiredNoFallback FlowReason = "verification_required_no_fallback"
	ReasonChallengeUnresolvable          FlowReason = "challenge_unresolvable"
	ReasonPasswordFieldMissing           FlowReason = "password_field_missing"
	ReasonTimeout                        FlowReason = "timeout"
)

// LoginFlowError is a structural failure of the login flow: a required
// element could not be found, or an optional step could not be cleared. It
// carries the state the machine was in so a changed upstream UI can be
// diagnosed from the error alone.
type LoginFlowError struct {
	Reason FlowReason
	State  State
	Detail string
}

func (e *LoginFlowError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("login flow failed in state %s: %s (%s)", e.State, e.Reason, e.Detail)
	}
	return fmt.Sprintf("login flow failed in state %s: %s", e.State, e.Reason)
}

func newFlowError(state State, reason FlowReason, detail string) *LoginFlowError {
	return &LoginFlowError{Reason: reason, State: state, Detail: detail}
}
