package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davrell/fluentdml/internal/config"
)

// NewValidateCommand creates the validate command: check a registry config
// file against the schema.
func NewValidateCommand(root *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a registry config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if root.Format == "json" {
				summary := map[string]any{
					"status":    "ok",
					"databases": len(cfg.Databases),
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d database(s)\n", len(cfg.Databases))
			for _, db := range cfg.Databases {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d computed field(s), %d trigger(s)\n",
					db.Name, len(db.ComputedFields), len(db.Triggers))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fluentdml.yaml", "registry config file")
	return cmd
}
