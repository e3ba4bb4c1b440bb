package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dataquery/internal/config"
	"dataquery/internal/registry"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate query spec files offline",
		Long:  "Loads every spec under SPEC_DIR and checks schema, enums, and transform names without touching any data source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(func(cfg *config.Config) error {
				reg, err := registry.Load(cfg.SpecDir)
				if err != nil {
					if getOutputFormat(cmd) == "json" {
						_ = printJSON(os.Stdout, map[string]any{"valid": false, "error": err.Error()})
						os.Exit(1)
					}
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, map[string]any{
						"valid":    true,
						"count":    reg.Len(),
						"checksum": reg.Checksum(),
					})
				}
				fmt.Fprintf(os.Stdout, "%d specs valid (checksum %s)\n", reg.Len(), reg.Checksum())
				return nil
			})
		},
	}
	return cmd
}

func newIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "List loaded query ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(func(cfg *config.Config) error {
				reg, err := registry.Load(cfg.SpecDir)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, map[string]any{"ids": reg.IDs()})
				}
				for _, id := range reg.IDs() {
					fmt.Fprintln(os.Stdout, id)
				}
				return nil
			})
		},
	}
}

func newChecksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum",
		Short: "Print the registry content checksum",
		Long:  "Prints a stable digest over all loaded specs, used to confirm a deployment matches an expected spec version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(func(cfg *config.Config) error {
				reg, err := registry.Load(cfg.SpecDir)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, map[string]any{"checksum": reg.Checksum()})
				}
				fmt.Fprintln(os.Stdout, reg.Checksum())
				return nil
			})
		},
	}
}
