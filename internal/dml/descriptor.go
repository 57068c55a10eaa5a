package dml

// StatementType identifies the logical operation a Descriptor performs.
type StatementType string

const (
	StatementSelect StatementType = "select"
	StatementInsert StatementType = "insert"
	StatementUpdate StatementType = "update"
	StatementDelete StatementType = "delete"
)

// Row is a single record keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row. Values are shared; the map is not.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// JoinType identifies the join variant. Declaration order of joins matters;
// the executor applies them in sequence.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
)

// JoinOn is the column-to-column join condition.
type JoinOn struct {
	Column1  string `json:"column1"`
	Operator string `json:"operator"`
	Column2  string `json:"column2"`
}

// Join is one join entry on a Descriptor.
type Join struct {
	Type  JoinType `json:"type"`
	Table string   `json:"table"`
	On    JoinOn   `json:"on"`
}

// Direction is a sort direction, normalized to upper case.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Order is one (column, direction) sort entry. Sequence position defines
// sort precedence.
type Order struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// AggregateType identifies an aggregate function.
type AggregateType string

const (
	AggregateCount AggregateType = "COUNT"
	AggregateSum   AggregateType = "SUM"
	AggregateAvg   AggregateType = "AVG"
	AggregateMax   AggregateType = "MAX"
	AggregateMin   AggregateType = "MIN"
)

// Aggregation describes a single aggregate over a column, exposed in the
// result row under Alias. An aggregate query collapses to a single row
// unless combined with GroupBy.
type Aggregation struct {
	Type   AggregateType `json:"type"`
	Column string        `json:"column"`
	Alias  string        `json:"alias"`
}

// Descriptor is the canonical representation of one logical DML operation
// and all its modifiers. It is pure data: construction happens in the
// builder package, compilation to a concrete query happens in an executor.
//
// Ordering is significant everywhere: Columns, Joins, Where, OrderBy, and
// GroupBy all preserve declaration order.
type Descriptor struct {
	Type     StatementType `json:"type"`
	Database string        `json:"database"`
	Table    string        `json:"table"`

	Columns  []string `json:"columns"`
	Distinct bool     `json:"distinct,omitempty"`

	Joins   []Join      `json:"joins,omitempty"`
	Where   []Condition `json:"where,omitempty"`
	OrderBy []Order     `json:"order_by,omitempty"`
	GroupBy []string    `json:"group_by,omitempty"`

	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`

	// Rows is the insert payload; Assignments is the update payload.
	// Exactly one of the two is set, matching Type.
	Rows        []Row `json:"rows,omitempty"`
	Assignments Row   `json:"assignments,omitempty"`

	Aggregation *Aggregation `json:"aggregation,omitempty"`
}

// NewDescriptor returns a select descriptor for the given database and table
// with the default projection ("*").
func NewDescriptor(database, table string) Descriptor {
	return Descriptor{
		Type:     StatementSelect,
		Database: database,
		Table:    table,
		Columns:  []string{"*"},
	}
}

// Clone returns a structurally independent copy of the descriptor.
// Mutating the copy never affects the original; this is what makes
// clone-on-write chains safe to branch.
func (d Descriptor) Clone() Descriptor {
	out := d

	if d.Columns != nil {
		out.Columns = make([]string, len(d.Columns))
		copy(out.Columns, d.Columns)
	}
	if d.Joins != nil {
		out.Joins = make([]Join, len(d.Joins))
		copy(out.Joins, d.Joins)
	}
	if d.Where != nil {
		out.Where = cloneConditions(d.Where)
	}
	if d.OrderBy != nil {
		out.OrderBy = make([]Order, len(d.OrderBy))
		copy(out.OrderBy, d.OrderBy)
	}
	if d.GroupBy != nil {
		out.GroupBy = make([]string, len(d.GroupBy))
		copy(out.GroupBy, d.GroupBy)
	}
	if d.Limit != nil {
		v := *d.Limit
		out.Limit = &v
	}
	if d.Offset != nil {
		v := *d.Offset
		out.Offset = &v
	}
	if d.Rows != nil {
		out.Rows = make([]Row, len(d.Rows))
		for i, r := range d.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	if d.Assignments != nil {
		out.Assignments = d.Assignments.Clone()
	}
	if d.Aggregation != nil {
		agg := *d.Aggregation
		out.Aggregation = &agg
	}

	return out
}
