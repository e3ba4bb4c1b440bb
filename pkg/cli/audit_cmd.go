package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dataquery/internal/app"
	"dataquery/internal/domain"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the execution audit trail",
	}
	cmd.AddCommand(newAuditListCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		queryID  string
		cacheHit string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List execution records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.AuditFilter{Limit: limit}
			if queryID != "" {
				filter.QueryID = &queryID
			}
			switch strings.ToLower(cacheHit) {
			case "":
			case "true":
				v := true
				filter.CacheHit = &v
			case "false":
				v := false
				filter.CacheHit = &v
			default:
				return fmt.Errorf("--cache-hit must be true or false, got %q", cacheHit)
			}

			return withApp(func(a *app.App) error {
				records, err := a.AuditReader.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, records)
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIMESTAMP\tQUERY\tROWS\tMS\tCACHE\tWARNINGS")
				for _, rec := range records {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%s\n",
						rec.Timestamp.Format(time.RFC3339), rec.QueryID,
						rec.RowCount, rec.DurationMs, rec.CacheHit,
						strings.Join(rec.Warnings, ","))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&queryID, "query", "", "Filter by query id")
	cmd.Flags().StringVar(&cacheHit, "cache-hit", "", "Filter by cache hit (true or false)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to return")

	return cmd
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <query-id>",
		Short: "Drop every cache entry for a query id",
		Long:  "Removes all cached entries for the query, across every parameter and pipeline variant.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				removed, err := a.Engine.Invalidate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, map[string]any{"query_id": args[0], "removed": removed})
				}
				fmt.Fprintf(os.Stdout, "removed %d entries for %s\n", removed, args[0])
				return nil
			})
		},
	}
}
