package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davrell/fluentdml/internal/compute"
	"github.com/davrell/fluentdml/internal/config"
	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/engine"
	"github.com/davrell/fluentdml/internal/store"
	"github.com/davrell/fluentdml/internal/trigger"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	ConfigPath string
	Database   string
	File       string
	LogDir     string
}

// NewExecCommand creates the exec command: run one descriptor file against
// a configured database.
func NewExecCommand(root *RootOptions) *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a DML descriptor file",
		Long:  "Reads a JSON DML descriptor, expands computed fields from the registry,\nand executes it against the configured SQLite database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "fluentdml.yaml", "registry config file")
	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "database name from the registry")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "descriptor JSON file")
	cmd.Flags().StringVar(&opts.LogDir, "log-dir", "triggers", "directory for trigger log files")
	cmd.MarkFlagRequired("database")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runExec(cmd *cobra.Command, root *RootOptions, opts *ExecOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	db, ok := cfg.Lookup(opts.Database)
	if !ok {
		return fmt.Errorf("database %q not found in %s", opts.Database, opts.ConfigPath)
	}

	data, err := os.ReadFile(opts.File)
	if err != nil {
		return fmt.Errorf("read descriptor: %w", err)
	}
	var desc dml.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("parse descriptor: %w", err)
	}
	if desc.Database == "" {
		desc.Database = db.Name
	}

	st, err := store.Open(db.Path)
	if err != nil {
		return err
	}
	defer st.Disconnect()

	orchOpts := []engine.Option{}
	if len(db.ComputedFields) > 0 {
		orchOpts = append(orchOpts, engine.WithComputes(compute.NewProcessor(db.ComputedFields)))
	}
	if len(db.Triggers) > 0 {
		reg := trigger.NewRegistry(db.Triggers, db.Name, desc.Table)
		orchOpts = append(orchOpts, engine.WithTriggers(reg, trigger.NewRunner(opts.LogDir)))
	}

	orch := engine.New(st, orchOpts...)
	rows, err := orch.Run(cmd.Context(), desc, phaseFor(desc.Type))
	if err != nil {
		return err
	}

	return writeRows(cmd.OutOrStdout(), root.Format, rows)
}

// phaseFor maps a statement type to its mutation event phase. Reads carry
// no phase.
func phaseFor(t dml.StatementType) trigger.Phase {
	switch t {
	case dml.StatementInsert:
		return trigger.PhaseAdd
	case dml.StatementUpdate:
		return trigger.PhaseUpdate
	case dml.StatementDelete:
		return trigger.PhaseDelete
	default:
		return ""
	}
}
