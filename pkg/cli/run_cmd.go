package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dataquery/internal/app"
	"dataquery/internal/domain"
	"dataquery/internal/engine"
)

func newRunCmd() *cobra.Command {
	var (
		params   []string
		postJSON string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <query-id>",
		Short: "Execute a query",
		Long: `Executes one query end to end and prints the result.

Overrides never mutate the stored spec: --param merges over the spec's
params and --post replaces its postprocess pipeline, each producing a
distinct cache entry. --ttl 0 bypasses the cache for this call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override, err := buildOverride(cmd, params, postJSON, ttl)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				result, err := a.Engine.Execute(cmd.Context(), args[0], override)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, result)
				}
				return renderResult(result)
			})
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Parameter override as key=value (repeatable)")
	cmd.Flags().StringVar(&postJSON, "post", "", "Replacement postprocess pipeline as a JSON step list")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Cache TTL for this call (0 bypasses the cache)")

	return cmd
}

func buildOverride(cmd *cobra.Command, params []string, postJSON string, ttl time.Duration) (*engine.Override, error) {
	override := &engine.Override{}
	used := false

	if len(params) > 0 {
		override.Params = make(map[string]string, len(params))
		for _, p := range params {
			key, value, ok := strings.Cut(p, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid --param %q: expected key=value", p)
			}
			override.Params[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		used = true
	}
	if postJSON != "" {
		var steps []domain.TransformStep
		if err := json.Unmarshal([]byte(postJSON), &steps); err != nil {
			return nil, fmt.Errorf("invalid --post: %w", err)
		}
		override.Postprocess = steps
		used = true
	}
	if cmd.Flags().Changed("ttl") {
		override.TTL = &ttl
		used = true
	}

	if !used {
		return nil, nil
	}
	return override, nil
}

func renderResult(result *domain.QueryResult) error {
	if err := renderFrame(os.Stdout, result.Frame); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\n%d rows", len(result.Frame.Rows))
	if result.CacheHit {
		fmt.Fprint(os.Stdout, " (cached)")
	}
	if result.Unit != "" && result.Unit != domain.UnitUnknown {
		fmt.Fprintf(os.Stdout, ", unit %s", result.Unit)
	}
	if result.Freshness.AsOfDate != "" {
		fmt.Fprintf(os.Stdout, ", as of %s", result.Freshness.AsOfDate)
	}
	fmt.Fprintln(os.Stdout)

	if result.Provenance.License != "" {
		fmt.Fprintf(os.Stdout, "license: %s", result.Provenance.License)
		if result.Provenance.Attribution != "" {
			fmt.Fprintf(os.Stdout, " (%s)", result.Provenance.Attribution)
		}
		fmt.Fprintln(os.Stdout)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stdout, "warning: %s\n", w)
	}
	return nil
}
