// File: cmd/login.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/observability"
)

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist the session state.",
		Long: `Login acquires an authenticated session: it restores the persisted auth
state when one exists, runs the full login flow when it does not, and writes
the refreshed snapshot back. Credentials come from the environment
(MAGPIE_ACCOUNT_IDENTIFIER, MAGPIE_ACCOUNT_PASSWORD, optionally
MAGPIE_ACCOUNT_SECONDARY).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, shutdown := a.sessionManager(cmd)
			defer shutdown()

			s, err := mgr.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Release(s)

			observability.GetLogger().Info("Authenticated session established.",
				zap.String("state_file", a.cfg.Session.StateFile))
			return nil
		},
	}
}
