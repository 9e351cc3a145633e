// File: internal/locator/chains.go

// Package locator resolves semantic UI roles ("password field", "next button")
// to concrete elements through ordered fallback chains of selectors. The
// chains are configuration, not code: the target site's markup changes often,
// and this package is the seam that absorbs that drift. Absence of an element
// is a first-class result here, never an error.
package locator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Role identifies a semantic UI target independent of any concrete selector.
type Role string

const (
	// Login flow roles.
	RoleIdentifierField   Role = "identifier_field"
	RoleIdentifierNext    Role = "identifier_next"
	RoleVerificationField Role = "verification_field"
	RoleVerificationNext  Role = "verification_next"
	RoleChallengeMarker   Role = "challenge_marker"
	RoleChallengeContinue Role = "challenge_continue"
	RolePasswordField     Role = "password_field"
	RoleLoginSubmit       Role = "login_submit"
	RoleBadCredentials    Role = "bad_credentials_marker"
	RoleAlertMarker       Role = "alert_marker"

	// Authenticated-state roles.
	RoleHomeMarker Role = "home_marker"

	// Feed roles.
	RoleFeedContainer Role = "feed_container"
	RoleFeedItem      Role = "feed_item"
)

// Chains maps each semantic role to its ordered fallback list of selectors.
// A Chains value is immutable configuration; it is never mutated at runtime.
type Chains map[Role][]string

// Defaults returns the built-in chains for the default target site. Sites
// rename their test ids regularly; callers running against drifted markup
// should supply an override file instead of patching these.
func Defaults() Chains {
	return Chains{
		RoleIdentifierField: {
			`input[autocomplete="username"]`,
			`input[name="text"]`,
			`input[type="text"]`,
		},
		RoleIdentifierNext: {
			`button[data-testid="ocfLoginNextButton"]`,
			`div[data-testid="LoginForm_Forward_Button"]`,
			`button[type="submit"]`,
		},
		RoleVerificationField: {
			`input[data-testid="ocfEnterTextTextInput"]`,
			`input[name="challenge_response"]`,
		},
		RoleVerificationNext: {
			`button[data-testid="ocfEnterTextNextButton"]`,
			`button[type="submit"]`,
		},
		RoleChallengeMarker: {
			`div[data-testid="LoginForm_Challenge"]`,
			`#arkose_iframe`,
			`iframe[title*="challenge"]`,
		},
		RoleChallengeContinue: {
			`input[type="submit"]`,
			`button[data-testid="ChallengeContinue"]`,
		},
		RolePasswordField: {
			`input[autocomplete="current-password"]`,
			`input[name="password"]`,
		},
		RoleLoginSubmit: {
			`button[data-testid="LoginForm_Login_Button"]`,
			`button[type="submit"]`,
		},
		RoleBadCredentials: {
			`div[data-testid="error-detail"]`,
		},
		RoleAlertMarker: {
			`div[role="alert"]`,
		},
		RoleHomeMarker: {
			`[data-testid="SideNav_NewTweet_Button"]`,
			`[data-testid="AppTabBar_Home_Link"]`,
		},
		RoleFeedContainer: {
			`[data-testid="primaryColumn"]`,
		},
		RoleFeedItem: {
			`article[data-testid="tweet"]`,
			`article[role="article"]`,
		},
	}
}

// LoadFile reads a chains override from a YAML file. Roles present in the
// file replace the corresponding default chain wholesale; absent roles keep
// their defaults.
func LoadFile(path string) (Chains, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read locator file: %w", err)
	}

	var override map[Role][]string
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("could not parse locator file %s: %w", path, err)
	}

	chains := Defaults()
	for role, selectors := range override {
		if len(selectors) == 0 {
			continue
		}
		chains[role] = selectors
	}
	return chains, nil
}
