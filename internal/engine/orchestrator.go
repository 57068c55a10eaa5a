// Package engine orchestrates descriptor execution: computed-field column
// rewriting, trigger interleaving around executor calls, and result
// reshaping. It owns the failure semantics of a terminal builder call; all
// store-specific work lives behind the Executor interface.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davrell/fluentdml/internal/compute"
	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/trigger"
)

// Orchestrator drives zero or more executor calls for one finalized
// descriptor. It is single-threaded per Run call: multi-row mutations
// execute strictly in input-row order, each call awaited to completion
// before the next begins.
type Orchestrator struct {
	exec     Executor
	computes *compute.Processor
	triggers *trigger.Registry
	runner   *trigger.Runner
	tokens   TokenGenerator
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithComputes enables computed-field expansion with the given processor.
func WithComputes(p *compute.Processor) Option {
	return func(o *Orchestrator) { o.computes = p }
}

// WithTriggers enables trigger interception for mutations.
func WithTriggers(reg *trigger.Registry, runner *trigger.Runner) Option {
	return func(o *Orchestrator) {
		o.triggers = reg
		o.runner = runner
	}
}

// WithTokenGenerator overrides the request-token source. Tests use
// FixedGenerator for deterministic log output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *Orchestrator) { o.tokens = g }
}

// New creates an Orchestrator over an executor collaborator.
func New(exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:   exec,
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a finalized descriptor. phase is the mutation event phase
// (Add/Update/Delete) or empty for pure reads.
//
// Steps:
//  1. Replace requested computed columns with their dependency columns.
//  2. Dispatch: one executor call, or one call per payload row with
//     before/after trigger hooks interleaved when a relevant trigger is
//     registered.
//  3. Materialize computed values on the result rows and strip dependency
//     columns the caller did not ask for.
//
// Any executor failure or handler error aborts remaining iterations. Rows
// already written stay written; per-row mutation loops are not transactional
// across rows.
func (o *Orchestrator) Run(ctx context.Context, d dml.Descriptor, phase trigger.Phase) ([]dml.Row, error) {
	token := o.tokens.Generate()

	slog.Debug("orchestrator run",
		"token", token,
		"type", d.Type,
		"database", d.Database,
		"table", d.Table,
		"phase", phase,
	)

	requested := d.Columns
	var rewritten []compute.Field
	var injected []string
	if o.computes != nil {
		d = d.Clone()
		d.Columns, rewritten, injected = o.rewriteColumns(requested)
	}

	rows, err := o.dispatch(ctx, d, phase, token)
	if err != nil {
		return nil, err
	}

	if len(rewritten) > 0 {
		rows, err = o.computes.Apply(rows, rewritten)
		if err != nil {
			return nil, fmt.Errorf("materialize computed fields: %w", err)
		}
		stripColumns(rows, injected)
	}

	slog.Info("orchestrator done",
		"token", token,
		"type", d.Type,
		"table", d.Table,
		"rows", len(rows),
	)
	return rows, nil
}

// rewriteColumns removes computed column names from the request and injects
// their dependency columns. Returns the outgoing column list, the computed
// fields that were rewritten away, and the dependency columns that were not
// part of the caller's explicit request (to be stripped after fetch).
func (o *Orchestrator) rewriteColumns(requested []string) ([]string, []compute.Field, []string) {
	explicit := make(map[string]bool, len(requested))
	for _, c := range requested {
		explicit[c] = true
	}

	var out []string
	var fields []compute.Field
	var injected []string
	present := make(map[string]bool)

	for _, col := range requested {
		field, ok := o.computes.Lookup(col)
		if !ok {
			if !present[col] {
				present[col] = true
				out = append(out, col)
			}
			continue
		}
		fields = append(fields, field)
		for _, dep := range o.computes.Dependencies(field) {
			if present[dep] {
				continue
			}
			present[dep] = true
			out = append(out, dep)
			if !explicit[dep] {
				injected = append(injected, dep)
			}
		}
	}
	return out, fields, injected
}

func (o *Orchestrator) dispatch(ctx context.Context, d dml.Descriptor, phase trigger.Phase, token string) ([]dml.Row, error) {
	var beforeReg, afterReg *trigger.Descriptor
	if phase != "" && o.triggers != nil && o.runner != nil {
		beforeReg = o.triggers.Get(trigger.Before(phase))
		afterReg = o.triggers.Get(trigger.After(phase))
	}

	// No event phase, or nothing registered: exactly one executor call.
	if beforeReg == nil && afterReg == nil {
		resp := o.exec.Execute(ctx, d)
		if !resp.OK() {
			return nil, o.fail(resp, d, token)
		}
		return resp.Data, nil
	}

	handle := executorHandle{exec: o.exec}

	var out []dml.Row
	for _, row := range payloadRows(d) {
		single := singleRowVariant(d, row)

		var beforeIcept *trigger.Interceptor
		if beforeReg != nil {
			icept, err := o.runner.Execute(ctx, handle, d.Database, d.Table, trigger.Before(phase), row)
			if err != nil {
				return nil, err
			}
			beforeIcept = icept
		}

		resp := o.exec.Execute(ctx, single)
		if !resp.OK() {
			beforeIcept.Discard()
			return nil, o.fail(resp, single, token)
		}
		if err := beforeIcept.Commit(); err != nil {
			slog.Warn("trigger log commit failed", "token", token, "error", err)
		}

		if afterReg != nil {
			icept, err := o.runner.Execute(ctx, handle, d.Database, d.Table, trigger.After(phase), row)
			if err != nil {
				return nil, err
			}
			if err := icept.Commit(); err != nil {
				slog.Warn("trigger log commit failed", "token", token, "error", err)
			}
		}

		out = append(out, resp.Data...)
	}
	return out, nil
}

// executorHandle adapts the executor to the collaborator contract trigger
// handlers receive, so a handler can read related rows mid-hook.
type executorHandle struct {
	exec Executor
}

func (h executorHandle) Query(ctx context.Context, d dml.Descriptor) ([]dml.Row, error) {
	resp := h.exec.Execute(ctx, d)
	if !resp.OK() {
		return nil, &EngineError{Status: resp.Status, Message: resp.Message}
	}
	return resp.Data, nil
}

// payloadRows returns the per-row iteration units of a mutation. Updates and
// deletes affect one logical payload; inserts iterate their row list.
func payloadRows(d dml.Descriptor) []dml.Row {
	switch d.Type {
	case dml.StatementInsert:
		return d.Rows
	case dml.StatementUpdate:
		return []dml.Row{d.Assignments}
	default:
		return []dml.Row{nil}
	}
}

func singleRowVariant(d dml.Descriptor, row dml.Row) dml.Descriptor {
	single := d.Clone()
	if d.Type == dml.StatementInsert {
		single.Rows = []dml.Row{row.Clone()}
	}
	return single
}

// fail converts a non-success response into an EngineError and emits the
// formatted diagnostic line. Warning-tier (600) responses log at warn level;
// that is the entire extent of their special treatment.
func (o *Orchestrator) fail(resp Response, d dml.Descriptor, token string) error {
	fp, err := dml.Fingerprint(d)
	if err != nil {
		fp = ""
	}

	attrs := []any{
		"token", token,
		"status", resp.Status,
		"message", resp.Message,
		"type", d.Type,
		"table", d.Table,
		"request", shortFingerprint(fp),
	}
	if resp.Status == StatusWarning {
		slog.Warn("engine call failed", attrs...)
	} else {
		slog.Error("engine call failed", attrs...)
	}

	return &EngineError{
		Status:      resp.Status,
		Message:     resp.Message,
		Fingerprint: fp,
	}
}

func stripColumns(rows []dml.Row, cols []string) {
	if len(cols) == 0 {
		return
	}
	for _, row := range rows {
		for _, c := range cols {
			delete(row, c)
		}
	}
}
