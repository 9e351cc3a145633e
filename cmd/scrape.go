// File: cmd/scrape.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/extract"
	"github.com/xkilldash9x/magpie/internal/observability"
	"github.com/xkilldash9x/magpie/internal/paginate"
)

// scrapeResult is the JSON document the scrape command emits.
type scrapeResult struct {
	Kind    extract.Kind     `json:"kind"`
	Outcome paginate.Outcome `json:"outcome"`
	Count   int              `json:"count"`
	Records []extract.Record `json:"records"`
}

func newScrapeCommand(a *app) *cobra.Command {
	var (
		kind    string
		url     string
		count   int
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect a bounded, deduplicated set of items from a feed or a profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			if k == extract.KindProfile && url == "" {
				return fmt.Errorf("scraping a profile requires --url")
			}

			mgr, shutdown := a.sessionManager(cmd)
			defer shutdown()

			s, err := mgr.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Release(s)

			target := a.cfg.HomeURL()
			if url != "" {
				target = url
			}
			if err := s.Navigate(cmd.Context(), target); err != nil {
				return err
			}

			if k == extract.KindProfile {
				rec, err := extract.HarvestProfile(cmd.Context(), s)
				if err != nil {
					return err
				}
				return writeResult(scrapeResult{
					Kind:    k,
					Outcome: paginate.OutcomeTargetReached,
					Count:   1,
					Records: []extract.Record{*rec},
				}, output)
			}

			budget := paginate.BudgetFromConfig(a.cfg.Scrape)
			if count > 0 {
				budget.TargetCount = count
			}
			if timeout > 0 {
				budget.Timeout = timeout
			}

			engine := paginate.New(a.resolver, observability.GetLogger())
			records, outcome, err := engine.Run(cmd.Context(), s, k, budget)
			if err != nil {
				return err
			}

			observability.GetLogger().Info("Scrape finished.",
				zap.Int("records", len(records)),
				zap.String("outcome", string(outcome)))

			return writeResult(scrapeResult{
				Kind:    k,
				Outcome: outcome,
				Count:   len(records),
				Records: records,
			}, output)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(extract.KindPost), "item kind to extract (post, comment, or profile)")
	cmd.Flags().StringVar(&url, "url", "", "location to scrape (default is the home feed; required for profiles)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "target number of items (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for the run (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON result to a file instead of stdout")
	return cmd
}

// parseKind validates the --kind flag value.
func parseKind(kind string) (extract.Kind, error) {
	switch k := extract.Kind(kind); k {
	case extract.KindPost, extract.KindComment, extract.KindProfile:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported kind %q, want %q, %q, or %q",
			kind, extract.KindPost, extract.KindComment, extract.KindProfile)
	}
}

func writeResult(result scrapeResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode result: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write result file: %w", err)
	}
	return nil
}
