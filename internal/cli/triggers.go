package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davrell/fluentdml/internal/config"
)

// NewTriggersCommand creates the triggers command: list the triggers
// registered for a database.
func NewTriggersCommand(root *RootOptions) *cobra.Command {
	var configPath, database string

	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "List registered triggers for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if _, ok := cfg.Lookup(database); !ok {
				return fmt.Errorf("database %q not found in %s", database, configPath)
			}

			triggers := cfg.GetTriggers(database)
			if root.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(triggers)
			}

			if len(triggers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no triggers)")
				return nil
			}
			for _, t := range triggers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: %s\n", t.Database, t.Table, t.Type)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fluentdml.yaml", "registry config file")
	cmd.Flags().StringVarP(&database, "database", "d", "", "database name from the registry")
	cmd.MarkFlagRequired("database")
	return cmd
}
