package builder

import (
	"context"
	"strconv"
	"strings"

	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/trigger"
)

// Get executes the chain as a select and returns the result rows.
func (t *Table) Get(ctx context.Context) ([]dml.Row, error) {
	if t.err != nil {
		return nil, t.err
	}
	desc := t.desc.Clone()
	desc.Type = dml.StatementSelect
	return t.orch.Run(ctx, desc, "")
}

// First executes the chain with limit 1 and returns the first row, or nil
// when nothing matches.
func (t *Table) First(ctx context.Context) (dml.Row, error) {
	rows, err := t.Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Find returns the row whose id column equals id, or nil.
func (t *Table) Find(ctx context.Context, id any) (dml.Row, error) {
	return t.Where("id", dml.OpEq, id).First(ctx)
}

// Insert executes an insert of the given rows. The payload must be a
// non-empty sequence of non-empty row objects; anything else fails before
// dispatch. Rows are written one executor call per row when an Add trigger
// is registered, in input order, otherwise in a single call.
func (t *Table) Insert(ctx context.Context, rows []dml.Row) error {
	if t.err != nil {
		return t.err
	}
	if len(rows) == 0 {
		return dml.NewValidationError("insert payload must be a non-empty list of row objects")
	}
	for i, row := range rows {
		if len(row) == 0 {
			return dml.NewValidationError("insert payload row %d is not a row object", i)
		}
	}

	desc := t.desc.Clone()
	desc.Type = dml.StatementInsert
	desc.Rows = make([]dml.Row, len(rows))
	for i, row := range rows {
		desc.Rows[i] = row.Clone()
	}

	_, err := t.orch.Run(ctx, desc, trigger.PhaseAdd)
	return err
}

// Update executes an update with the given assignments. Updates without any
// WHERE condition never reach the executor.
func (t *Table) Update(ctx context.Context, assignments dml.Row) error {
	if t.err != nil {
		return t.err
	}
	if len(assignments) == 0 {
		return dml.NewValidationError("update payload must be a row object")
	}
	if len(t.desc.Where) == 0 {
		return dml.NewValidationError("update requires at least one where condition")
	}

	desc := t.desc.Clone()
	desc.Type = dml.StatementUpdate
	desc.Assignments = assignments.Clone()

	_, err := t.orch.Run(ctx, desc, trigger.PhaseUpdate)
	return err
}

// Delete executes a delete. Deletes without any WHERE condition never reach
// the executor.
func (t *Table) Delete(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	if len(t.desc.Where) == 0 {
		return dml.NewValidationError("delete requires at least one where condition")
	}

	desc := t.desc.Clone()
	desc.Type = dml.StatementDelete

	_, err := t.orch.Run(ctx, desc, trigger.PhaseDelete)
	return err
}

// Count executes COUNT over the chain. An empty result set counts as 0.
func (t *Table) Count(ctx context.Context) (int64, error) {
	val, err := t.aggregate(ctx, dml.AggregateCount, "*")
	if err != nil {
		return 0, err
	}
	return int64(val), nil
}

// Sum executes SUM over a column; 0 when nothing matches.
func (t *Table) Sum(ctx context.Context, column string) (float64, error) {
	return t.aggregate(ctx, dml.AggregateSum, column)
}

// Avg executes AVG over a column; 0 when nothing matches.
func (t *Table) Avg(ctx context.Context, column string) (float64, error) {
	return t.aggregate(ctx, dml.AggregateAvg, column)
}

// Max executes MAX over a column; 0 when nothing matches.
func (t *Table) Max(ctx context.Context, column string) (float64, error) {
	return t.aggregate(ctx, dml.AggregateMax, column)
}

// Min executes MIN over a column; 0 when nothing matches.
func (t *Table) Min(ctx context.Context, column string) (float64, error) {
	return t.aggregate(ctx, dml.AggregateMin, column)
}

// aggregate rewrites the chain into a single aliased aggregate expression
// with limit 1, executes it, and unwraps the one numeric field. A missing
// row or NULL aggregate yields 0 rather than an error.
func (t *Table) aggregate(ctx context.Context, kind dml.AggregateType, column string) (float64, error) {
	if t.err != nil {
		return 0, t.err
	}

	alias := strings.ToLower(string(kind))
	desc := t.desc.Clone()
	desc.Type = dml.StatementSelect
	desc.Aggregation = &dml.Aggregation{Type: kind, Column: column, Alias: alias}
	desc.Columns = []string{string(kind) + "(" + column + ") AS " + alias}
	one := 1
	desc.Limit = &one

	rows, err := t.orch.Run(ctx, desc, "")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toFloat(rows[0][alias]), nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case []byte:
		f, _ := strconv.ParseFloat(string(n), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
