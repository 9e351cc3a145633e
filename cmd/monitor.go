// File: cmd/monitor.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/extract"
	"github.com/xkilldash9x/magpie/internal/monitor"
	"github.com/xkilldash9x/magpie/internal/observability"
	"github.com/xkilldash9x/magpie/internal/paginate"
)

func newMonitorCommand(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll the home feed and print newly-appeared items as JSON lines.",
		Long: `Monitor seeds itself with the items currently on the feed, then reloads
on every tick and prints only the items that were not there before, one JSON
object per line. Stop with Ctrl-C; an in-flight tick completes first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			mgr, shutdown := a.sessionManager(cmd)
			defer shutdown()

			s, err := mgr.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Release(s)

			if err := s.Navigate(cmd.Context(), a.cfg.HomeURL()); err != nil {
				return err
			}

			budget := paginate.BudgetFromConfig(a.cfg.Scrape)
			if count > 0 {
				budget.TargetCount = count
			}
			if interval <= 0 {
				interval = a.cfg.Monitor.PollInterval
			}

			enc := json.NewEncoder(os.Stdout)
			emit := func(records []extract.Record) {
				for _, r := range records {
					if err := enc.Encode(r); err != nil {
						logger.Warn("Could not write record.", zap.Error(err))
					}
				}
			}

			engine := paginate.New(a.resolver, logger)
			stop, done := monitor.New(engine, logger).Start(
				cmd.Context(), s, extract.KindPost, budget, interval, emit)

			select {
			case <-cmd.Context().Done():
				logger.Info("Shutting down feed monitor.")
				stop()
				return nil
			case <-done:
				if cmd.Context().Err() != nil {
					return nil
				}
				// The loop only exits on its own when something went wrong.
				return fmt.Errorf("feed monitor stopped unexpectedly")
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "items examined per tick (default from config)")
	return cmd
}
