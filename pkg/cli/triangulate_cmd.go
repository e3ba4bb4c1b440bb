package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dataquery/internal/app"
	"dataquery/internal/domain"
	"dataquery/internal/triangulate"
)

func newTriangulateCmd() *cobra.Command {
	var (
		groupBy       []string
		partKey       string
		totalKey      string
		rateKey       string
		ratePart      string
		complementKey string
		entityKey     string
		periodKey     string
		signalKey     string
		growthKey     string
	)

	cmd := &cobra.Command{
		Use:   "triangulate <query-id> [query-id...]",
		Short: "Cross-check numeric invariants over query results",
		Long: `Executes the given queries and runs an advisory check battery over the
results. Percent bounds are always checked; sum-to-total, rate consistency,
and signal coherence join the battery when their key flags are set. Issues
are reported, never applied back to the data.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var checks []triangulate.Check
			checks = append(checks, triangulate.PercentBounds{})
			if partKey != "" && totalKey != "" {
				checks = append(checks, triangulate.SumToTotal{
					GroupKeys: groupBy, PartKey: partKey, TotalKey: totalKey,
				})
			}
			if rateKey != "" && ratePart != "" && complementKey != "" {
				checks = append(checks, triangulate.RateConsistency{
					RateKey: rateKey, PartKey: ratePart, ComplementKey: complementKey,
				})
			}
			if signalKey != "" && growthKey != "" {
				checks = append(checks, triangulate.SignalCoherence{
					EntityKey: entityKey, PeriodKey: periodKey,
					SignalKey: signalKey, GrowthKey: growthKey,
				})
			}

			return withApp(func(a *app.App) error {
				results := make([]*domain.QueryResult, 0, len(args))
				reports := []domain.TriangulationResult{}
				for _, id := range args {
					result, err := a.Engine.Execute(cmd.Context(), id, nil)
					if err != nil {
						return err
					}
					results = append(results, result)

					// Specs flagged sum_to_one get a per-query share-sum check.
					spec, err := a.Registry.Get(id)
					if err != nil {
						return err
					}
					if spec.Constraints.SumToOne {
						check := triangulate.ShareSum{CheckID: "share_sum:" + id, GroupKeys: groupBy}
						reports = append(reports, check.Run([]*domain.QueryResult{result}))
					}
				}

				reports = append(reports, triangulate.NewRunner(checks...).Run(results...)...)
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, reports)
				}

				issues := 0
				for _, report := range reports {
					if report.Clean() {
						fmt.Fprintf(os.Stdout, "%s: ok\n", report.CheckID)
						continue
					}
					for _, issue := range report.Issues {
						issues++
						fmt.Fprintf(os.Stdout, "%s: [%s] %s: %s\n", report.CheckID, issue.Severity, issue.Code, issue.Message)
					}
				}
				if issues > 0 {
					fmt.Fprintf(os.Stdout, "%d issue(s) over %s\n", issues, strings.Join(args, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "Grouping keys for sum-to-total")
	cmd.Flags().StringVar(&partKey, "sum-part", "", "Component field for sum-to-total")
	cmd.Flags().StringVar(&totalKey, "sum-total", "", "Reported total field for sum-to-total")
	cmd.Flags().StringVar(&rateKey, "rate", "", "Reported rate field for rate consistency")
	cmd.Flags().StringVar(&ratePart, "rate-part", "", "Part field for rate consistency")
	cmd.Flags().StringVar(&complementKey, "rate-complement", "", "Complement field for rate consistency")
	cmd.Flags().StringVar(&entityKey, "entity", "country", "Entity field for signal coherence")
	cmd.Flags().StringVar(&periodKey, "period", "year", "Period field for signal coherence")
	cmd.Flags().StringVar(&signalKey, "signal", "", "Signal field in the first result for signal coherence")
	cmd.Flags().StringVar(&growthKey, "growth", "", "Growth field in the remaining results for signal coherence")

	return cmd
}
