// Package builder is the fluent query façade. A Table value wraps one DML
// descriptor; every chain step returns a new Table holding a structurally
// copied descriptor (clone-on-write), so a base query can branch into
// independent derived queries without cross-contamination.
//
// Input errors stick to the chain: the first ValidationError is carried
// forward and returned by the terminal call before any executor dispatch.
package builder

import (
	"strings"

	"github.com/davrell/fluentdml/internal/compute"
	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/engine"
	"github.com/davrell/fluentdml/internal/trigger"
)

// Session owns the executor and the shared read-only computed-field and
// trigger registries of one database, and vends Table handles.
type Session struct {
	database string
	exec     engine.Executor
	computes *compute.Processor
	triggers []trigger.Descriptor
	runner   *trigger.Runner
	tokens   engine.TokenGenerator
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithComputes activates computed-field expansion for all tables of the
// session.
func WithComputes(p *compute.Processor) SessionOption {
	return func(s *Session) { s.computes = p }
}

// WithTriggers activates trigger interception. descs is the database-wide
// trigger list; each Table handle keeps only its own entries.
func WithTriggers(descs []trigger.Descriptor, runner *trigger.Runner) SessionOption {
	return func(s *Session) {
		s.triggers = descs
		s.runner = runner
	}
}

// WithTokenGenerator overrides the orchestrator's request-token source.
func WithTokenGenerator(g engine.TokenGenerator) SessionOption {
	return func(s *Session) { s.tokens = g }
}

// NewSession creates a session over an executor collaborator.
func NewSession(database string, exec engine.Executor, opts ...SessionOption) *Session {
	s := &Session{database: database, exec: exec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns a fresh builder for one table. The trigger registry and
// computed-field set are resolved here, once, and shared read-only across
// every builder derived from this handle.
func (s *Session) Table(name string) *Table {
	var orchOpts []engine.Option
	if s.computes != nil {
		orchOpts = append(orchOpts, engine.WithComputes(s.computes))
	}
	if s.runner != nil {
		reg := trigger.NewRegistry(s.triggers, s.database, name)
		orchOpts = append(orchOpts, engine.WithTriggers(reg, s.runner))
	}
	if s.tokens != nil {
		orchOpts = append(orchOpts, engine.WithTokenGenerator(s.tokens))
	}

	return &Table{
		desc:    dml.NewDescriptor(s.database, name),
		orch:    engine.New(s.exec, orchOpts...),
		pending: dml.ConnectiveAnd,
	}
}

// Table is one immutable step of a builder chain.
type Table struct {
	desc    dml.Descriptor
	orch    *engine.Orchestrator
	pending dml.Connective
	err     error
}

// clone is the clone-on-write step: a structurally copied descriptor inside
// a fresh Table value. The orchestrator and any sticky error are shared.
func (t *Table) clone() *Table {
	return &Table{
		desc:    t.desc.Clone(),
		orch:    t.orch,
		pending: t.pending,
		err:     t.err,
	}
}

func (t *Table) fail(format string, args ...any) *Table {
	next := t.clone()
	if next.err == nil {
		next.err = dml.NewValidationError(format, args...)
	}
	return next
}

// Descriptor returns a copy of the current descriptor. Used by tests and
// diagnostics; mutating the copy has no effect on the chain.
func (t *Table) Descriptor() dml.Descriptor {
	return t.desc.Clone()
}

// Err returns the sticky validation error, if any.
func (t *Table) Err() error {
	return t.err
}

// Select sets the output columns. No arguments means every column.
func (t *Table) Select(columns ...string) *Table {
	next := t.clone()
	if len(columns) == 0 {
		next.desc.Columns = []string{"*"}
		return next
	}
	next.desc.Columns = append([]string(nil), columns...)
	return next
}

// Distinct marks the query as duplicate-eliminating, independent of the
// column selection.
func (t *Table) Distinct() *Table {
	next := t.clone()
	next.desc.Distinct = true
	return next
}

// Where appends a leaf condition using the pending connective (AND unless
// And/Or was called), then resets the pending connective to AND.
func (t *Table) Where(column, operator string, value ...any) *Table {
	next, cond, ok := t.leaf(column, operator, value)
	if !ok {
		return next
	}
	cond.Connective = t.pending
	next.desc.Where = append(next.desc.Where, cond)
	next.pending = dml.ConnectiveAnd
	return next
}

// OrWhere appends a leaf condition joined with OR. It affects only this
// node; the pending connective for subsequent calls is left untouched.
func (t *Table) OrWhere(column, operator string, value ...any) *Table {
	next, cond, ok := t.leaf(column, operator, value)
	if !ok {
		return next
	}
	cond.Connective = dml.ConnectiveOr
	next.desc.Where = append(next.desc.Where, cond)
	return next
}

func (t *Table) leaf(column, operator string, value []any) (*Table, dml.Condition, bool) {
	if !dml.ValidOperator(operator) {
		return t.fail("unknown operator %q", operator), dml.Condition{}, false
	}
	if dml.OperatorRequiresValue(operator) && len(value) == 0 {
		return t.fail("operator %q requires a value for column %q", operator, column), dml.Condition{}, false
	}

	var val any
	if len(value) > 0 {
		val = value[0]
	}
	return t.clone(), dml.Leaf(column, operator, val, dml.ConnectiveAnd), true
}

// And sets the connective used by the next Where call.
func (t *Table) And() *Table {
	next := t.clone()
	next.pending = dml.ConnectiveAnd
	return next
}

// Or sets the connective used by the next Where call.
func (t *Table) Or() *Table {
	next := t.clone()
	next.pending = dml.ConnectiveOr
	return next
}

// WhereBetween appends a BETWEEN condition over [lo, hi]. A nil bound makes
// the call a silent no-op; permissive by design, not an error.
func (t *Table) WhereBetween(column string, lo, hi any) *Table {
	if lo == nil || hi == nil {
		return t
	}
	next := t.clone()
	next.desc.Where = append(next.desc.Where,
		dml.Leaf(column, dml.OpBetween, []any{lo, hi}, t.pending))
	next.pending = dml.ConnectiveAnd
	return next
}

// WhereIn appends an IN condition. An empty value list makes the call a
// silent no-op.
func (t *Table) WhereIn(column string, values []any) *Table {
	if len(values) == 0 {
		return t
	}
	next := t.clone()
	copied := append([]any(nil), values...)
	next.desc.Where = append(next.desc.Where,
		dml.Leaf(column, dml.OpIn, copied, t.pending))
	next.pending = dml.ConnectiveAnd
	return next
}

// WhereNull appends an IS NULL condition.
func (t *Table) WhereNull(column string) *Table {
	next := t.clone()
	next.desc.Where = append(next.desc.Where,
		dml.Leaf(column, dml.OpIsNull, nil, t.pending))
	next.pending = dml.ConnectiveAnd
	return next
}

// WhereNotNull appends an IS NOT NULL condition.
func (t *Table) WhereNotNull(column string) *Table {
	next := t.clone()
	next.desc.Where = append(next.desc.Where,
		dml.Leaf(column, dml.OpIsNotNull, nil, t.pending))
	next.pending = dml.ConnectiveAnd
	return next
}

// WhereGroup scopes a nested condition sequence. The callback receives a
// fresh builder bound to the same table with an empty condition tree and
// returns its finished chain; the resulting conditions are folded into one
// group node appended with the pending connective. Groups nest arbitrarily.
func (t *Table) WhereGroup(fn func(q *Table) *Table) *Table {
	sub := &Table{
		desc:    dml.NewDescriptor(t.desc.Database, t.desc.Table),
		orch:    t.orch,
		pending: dml.ConnectiveAnd,
	}
	sub = fn(sub)

	next := t.clone()
	if sub.err != nil {
		if next.err == nil {
			next.err = sub.err
		}
		return next
	}
	if len(sub.desc.Where) == 0 {
		return next
	}
	next.desc.Where = append(next.desc.Where, dml.Group(sub.desc.Where, t.pending))
	next.pending = dml.ConnectiveAnd
	return next
}

// Join appends an INNER join. Unknown tables are an executor-time failure;
// the builder does not validate them.
func (t *Table) Join(table, column1, operator, column2 string) *Table {
	return t.join(dml.JoinInner, table, column1, operator, column2)
}

// LeftJoin appends a LEFT join.
func (t *Table) LeftJoin(table, column1, operator, column2 string) *Table {
	return t.join(dml.JoinLeft, table, column1, operator, column2)
}

// RightJoin appends a RIGHT join.
func (t *Table) RightJoin(table, column1, operator, column2 string) *Table {
	return t.join(dml.JoinRight, table, column1, operator, column2)
}

func (t *Table) join(kind dml.JoinType, table, column1, operator, column2 string) *Table {
	next := t.clone()
	next.desc.Joins = append(next.desc.Joins, dml.Join{
		Type:  kind,
		Table: table,
		On:    dml.JoinOn{Column1: column1, Operator: operator, Column2: column2},
	})
	return next
}

// OrderBy appends a sort entry. Direction defaults to ASC and is matched
// case-insensitively; anything but ASC/DESC is a validation error.
func (t *Table) OrderBy(column string, direction ...string) *Table {
	dir := dml.Ascending
	if len(direction) > 0 {
		normalized, ok := normalizeDirection(direction[0])
		if !ok {
			return t.fail("invalid sort direction %q for column %q", direction[0], column)
		}
		dir = normalized
	}

	next := t.clone()
	next.desc.OrderBy = append(next.desc.OrderBy, dml.Order{Column: column, Direction: dir})
	return next
}

func normalizeDirection(s string) (dml.Direction, bool) {
	switch {
	case strings.EqualFold(s, "ASC"):
		return dml.Ascending, true
	case strings.EqualFold(s, "DESC"):
		return dml.Descending, true
	}
	return "", false
}

// GroupBy appends one grouping column. Repeated calls accumulate without
// de-duplication.
func (t *Table) GroupBy(column string) *Table {
	next := t.clone()
	next.desc.GroupBy = append(next.desc.GroupBy, column)
	return next
}

// Limit caps the number of result rows.
func (t *Table) Limit(n int) *Table {
	if n < 0 {
		return t.fail("limit must be non-negative, got %d", n)
	}
	next := t.clone()
	next.desc.Limit = &n
	return next
}

// Page sets the offset to (n-1) * limit. Without a prior Limit the call is
// a no-op and the offset stays unset: pagination requires a limit in the
// effective descriptor.
func (t *Table) Page(n int) *Table {
	if t.desc.Limit == nil {
		return t
	}
	if n < 1 {
		return t.fail("page must be positive, got %d", n)
	}
	next := t.clone()
	offset := (n - 1) * *next.desc.Limit
	next.desc.Offset = &offset
	return next
}
