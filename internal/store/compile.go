package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davrell/fluentdml/internal/dml"
)

// Compile converts a descriptor to parameterized SQL. Values are never
// interpolated into the statement text; every value travels as a parameter.
func Compile(d dml.Descriptor) (string, []any, error) {
	switch d.Type {
	case dml.StatementSelect:
		return compileSelect(d)
	case dml.StatementInsert:
		return compileInsert(d)
	case dml.StatementUpdate:
		return compileUpdate(d)
	case dml.StatementDelete:
		return compileDelete(d)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %q", d.Type)
	}
}

func compileSelect(d dml.Descriptor) (string, []any, error) {
	var sb strings.Builder
	var params []any

	sb.WriteString("SELECT ")
	if d.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(selectList(d))
	sb.WriteString(" FROM ")
	sb.WriteString(d.Table)

	for _, j := range d.Joins {
		sb.WriteString(fmt.Sprintf(" %s JOIN %s ON %s %s %s",
			j.Type, j.Table, j.On.Column1, j.On.Operator, j.On.Column2))
	}

	if len(d.Where) > 0 {
		whereSQL, whereParams, err := compileWhere(d.Where)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
		params = append(params, whereParams...)
	}

	if len(d.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(d.GroupBy, ", "))
	}

	if len(d.OrderBy) > 0 {
		parts := make([]string, len(d.OrderBy))
		for i, o := range d.OrderBy {
			parts[i] = fmt.Sprintf("%s %s", o.Column, o.Direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if d.Limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", *d.Limit))
	}
	if d.Offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", *d.Offset))
	}

	return sb.String(), params, nil
}

// selectList renders the projection. An aggregation takes over the entire
// column list: aggregate queries expose exactly one aliased expression.
func selectList(d dml.Descriptor) string {
	if agg := d.Aggregation; agg != nil {
		return fmt.Sprintf("%s(%s) AS %s", agg.Type, agg.Column, agg.Alias)
	}
	if len(d.Columns) == 0 {
		return "*"
	}
	return strings.Join(d.Columns, ", ")
}

// compileWhere folds the connective-tagged sequence left to right. The
// first node's connective is not rendered; groups recurse inside
// parentheses.
func compileWhere(conds []dml.Condition) (string, []any, error) {
	var sb strings.Builder
	var params []any

	for i, c := range conds {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(string(c.Connective))
			sb.WriteString(" ")
		}

		if c.IsGroup {
			inner, innerParams, err := compileWhere(c.Conditions)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString("(")
			sb.WriteString(inner)
			sb.WriteString(")")
			params = append(params, innerParams...)
			continue
		}

		leafSQL, leafParams, err := compileLeaf(c)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(leafSQL)
		params = append(params, leafParams...)
	}

	return sb.String(), params, nil
}

func compileLeaf(c dml.Condition) (string, []any, error) {
	switch c.Operator {
	case dml.OpIsNull, dml.OpIsNotNull:
		return fmt.Sprintf("%s %s", c.Column, c.Operator), nil, nil

	case dml.OpIn, dml.OpNotIn:
		values, ok := c.Value.([]any)
		if !ok || len(values) == 0 {
			return "", nil, fmt.Errorf("%s condition on %q needs a non-empty value list", c.Operator, c.Column)
		}
		placeholders := strings.Repeat("?, ", len(values))
		placeholders = placeholders[:len(placeholders)-2]
		return fmt.Sprintf("%s %s (%s)", c.Column, c.Operator, placeholders), values, nil

	case dml.OpBetween, dml.OpNotBetween:
		bounds, ok := c.Value.([]any)
		if !ok || len(bounds) != 2 {
			return "", nil, fmt.Errorf("%s condition on %q needs exactly two bounds", c.Operator, c.Column)
		}
		return fmt.Sprintf("%s %s ? AND ?", c.Column, c.Operator), bounds, nil

	default:
		if !dml.ValidOperator(c.Operator) {
			return "", nil, fmt.Errorf("unsupported operator %q", c.Operator)
		}
		return fmt.Sprintf("%s %s ?", c.Column, c.Operator), []any{c.Value}, nil
	}
}

func compileInsert(d dml.Descriptor) (string, []any, error) {
	if len(d.Rows) == 0 {
		return "", nil, fmt.Errorf("insert descriptor has no rows")
	}

	// Column order comes from the first row, sorted for deterministic SQL.
	// Every row must carry exactly that column set; a mismatch would either
	// drop values or insert NULLs silently.
	columns := make([]string, 0, len(d.Rows[0]))
	for col := range d.Rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for i, row := range d.Rows[1:] {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert row %d has %d column(s), want %d", i+1, len(row), len(columns))
		}
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				return "", nil, fmt.Errorf("insert row %d is missing column %q", i+1, col)
			}
		}
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	tuples := make([]string, len(d.Rows))
	var params []any
	for i, row := range d.Rows {
		tuples[i] = placeholder
		for _, col := range columns {
			params = append(params, row[col])
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Table, strings.Join(columns, ", "), strings.Join(tuples, ", "))
	return query, params, nil
}

func compileUpdate(d dml.Descriptor) (string, []any, error) {
	if len(d.Assignments) == 0 {
		return "", nil, fmt.Errorf("update descriptor has no assignments")
	}
	if len(d.Where) == 0 {
		return "", nil, fmt.Errorf("update descriptor has no where conditions")
	}

	columns := make([]string, 0, len(d.Assignments))
	for col := range d.Assignments {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	sets := make([]string, len(columns))
	var params []any
	for i, col := range columns {
		sets[i] = col + " = ?"
		params = append(params, d.Assignments[col])
	}

	whereSQL, whereParams, err := compileWhere(d.Where)
	if err != nil {
		return "", nil, err
	}
	params = append(params, whereParams...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.Table, strings.Join(sets, ", "), whereSQL)
	return query, params, nil
}

func compileDelete(d dml.Descriptor) (string, []any, error) {
	if len(d.Where) == 0 {
		return "", nil, fmt.Errorf("delete descriptor has no where conditions")
	}

	whereSQL, params, err := compileWhere(d.Where)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, whereSQL)
	return query, params, nil
}
