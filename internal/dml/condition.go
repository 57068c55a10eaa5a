package dml

// Connective is the AND/OR relation joining a WHERE node to its predecessor.
// The first node in a sequence stores ConnectiveAnd by convention even though
// nothing precedes it.
type Connective string

const (
	ConnectiveAnd Connective = "AND"
	ConnectiveOr  Connective = "OR"
)

// Comparison operators accepted by the condition tree.
const (
	OpEq         = "="
	OpNeq        = "!="
	OpNeqAlt     = "<>"
	OpGt         = ">"
	OpLt         = "<"
	OpGte        = ">="
	OpLte        = "<="
	OpLike       = "LIKE"
	OpNotLike    = "NOT LIKE"
	OpIn         = "IN"
	OpNotIn      = "NOT IN"
	OpBetween    = "BETWEEN"
	OpNotBetween = "NOT BETWEEN"
	OpIsNull     = "IS NULL"
	OpIsNotNull  = "IS NOT NULL"
)

// validOperators is the closed set of accepted comparison operators.
// The value indicates whether the operator requires a comparison value.
var validOperators = map[string]bool{
	OpEq:         true,
	OpNeq:        true,
	OpNeqAlt:     true,
	OpGt:         true,
	OpLt:         true,
	OpGte:        true,
	OpLte:        true,
	OpLike:       true,
	OpNotLike:    true,
	OpIn:         true,
	OpNotIn:      true,
	OpBetween:    true,
	OpNotBetween: true,
	OpIsNull:     false,
	OpIsNotNull:  false,
}

// ValidOperator reports whether op is an accepted comparison operator.
func ValidOperator(op string) bool {
	_, ok := validOperators[op]
	return ok
}

// OperatorRequiresValue reports whether op needs a comparison value.
// Only the NULL-check operators do not.
func OperatorRequiresValue(op string) bool {
	return validOperators[op]
}

// Condition is one node of the WHERE sequence: either a leaf comparison or
// a group wrapping a nested, self-contained sequence. The variant is tagged
// by IsGroup rather than modeled as a type hierarchy so a downstream
// translator can fold the sequence left to right, parenthesizing only where
// the caller asked for a group.
type Condition struct {
	Column     string      `json:"column,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	Value      any         `json:"value,omitempty"`
	Connective Connective  `json:"connective"`
	IsGroup    bool        `json:"is_group,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Leaf constructs a leaf condition node.
func Leaf(column, operator string, value any, connective Connective) Condition {
	return Condition{
		Column:     column,
		Operator:   operator,
		Value:      value,
		Connective: connective,
	}
}

// Group constructs a group node wrapping the given nested sequence.
func Group(conditions []Condition, connective Connective) Condition {
	return Condition{
		Connective: connective,
		IsGroup:    true,
		Conditions: conditions,
	}
}

func cloneConditions(conds []Condition) []Condition {
	out := make([]Condition, len(conds))
	for i, c := range conds {
		out[i] = c
		if c.Conditions != nil {
			out[i].Conditions = cloneConditions(c.Conditions)
		}
		if vals, ok := c.Value.([]any); ok {
			copied := make([]any, len(vals))
			copy(copied, vals)
			out[i].Value = copied
		}
	}
	return out
}
