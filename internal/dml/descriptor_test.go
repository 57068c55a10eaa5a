package dml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDescriptor_Defaults(t *testing.T) {
	d := NewDescriptor("app", "users")

	assert.Equal(t, StatementSelect, d.Type)
	assert.Equal(t, "app", d.Database)
	assert.Equal(t, "users", d.Table)
	assert.Equal(t, []string{"*"}, d.Columns)
	assert.False(t, d.Distinct)
	assert.Nil(t, d.Where)
	assert.Nil(t, d.Limit)
	assert.Nil(t, d.Offset)
}

func TestClone_StructuralIndependence(t *testing.T) {
	limit := 5
	base := NewDescriptor("app", "users")
	base.Where = []Condition{
		Leaf("age", OpGt, 18, ConnectiveAnd),
		Group([]Condition{
			Leaf("status", OpEq, "active", ConnectiveAnd),
		}, ConnectiveOr),
	}
	base.Limit = &limit
	base.Rows = []Row{{"name": "Ada"}}

	clone := base.Clone()

	// Mutations of the clone must never show through to the original.
	clone.Columns[0] = "id"
	clone.Where[0].Value = 99
	clone.Where[1].Conditions[0].Value = "banned"
	*clone.Limit = 100
	clone.Rows[0]["name"] = "Grace"

	assert.Equal(t, []string{"*"}, base.Columns)
	assert.Equal(t, 18, base.Where[0].Value)
	assert.Equal(t, "active", base.Where[1].Conditions[0].Value)
	assert.Equal(t, 5, *base.Limit)
	assert.Equal(t, "Ada", base.Rows[0]["name"])
}

func TestClone_CopiesValueLists(t *testing.T) {
	base := NewDescriptor("app", "users")
	base.Where = []Condition{
		Leaf("id", OpIn, []any{1, 2, 3}, ConnectiveAnd),
	}

	clone := base.Clone()
	clone.Where[0].Value.([]any)[0] = 99

	require.Equal(t, []any{1, 2, 3}, base.Where[0].Value)
}

func TestOperatorRequiresValue(t *testing.T) {
	testCases := []struct {
		op       string
		requires bool
	}{
		{OpEq, true},
		{OpNeq, true},
		{OpNeqAlt, true},
		{OpLike, true},
		{OpIn, true},
		{OpBetween, true},
		{OpIsNull, false},
		{OpIsNotNull, false},
	}

	for _, tc := range testCases {
		t.Run(tc.op, func(t *testing.T) {
			assert.True(t, ValidOperator(tc.op))
			assert.Equal(t, tc.requires, OperatorRequiresValue(tc.op))
		})
	}
}

func TestValidOperator_RejectsUnknown(t *testing.T) {
	assert.False(t, ValidOperator("LIKE NOT"))
	assert.False(t, ValidOperator(""))
	assert.False(t, ValidOperator("=="))
}

func TestRowClone_Nil(t *testing.T) {
	var r Row
	assert.Nil(t, r.Clone())
}
