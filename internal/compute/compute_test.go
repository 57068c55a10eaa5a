package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrell/fluentdml/internal/dml"
)

func TestExtractDependencies(t *testing.T) {
	testCases := []struct {
		name        string
		instruction string
		want        []string
	}{
		{
			name:        "string concatenation",
			instruction: "first_name + ' ' + last_name",
			want:        []string{"first_name", "last_name"},
		},
		{
			name:        "arithmetic",
			instruction: "price * quantity",
			want:        []string{"price", "quantity"},
		},
		{
			name:        "function names are not dependencies",
			instruction: "round(price * quantity)",
			want:        []string{"price", "quantity"},
		},
		{
			name:        "duplicates collapse, first-reference order",
			instruction: "total - total * discount",
			want:        []string{"total", "discount"},
		},
		{
			name:        "literals only",
			instruction: "'fixed' + '!'",
			want:        nil,
		},
		{
			name:        "quoted text is not a column",
			instruction: "'age' + age",
			want:        []string{"age"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractDependencies(tc.instruction))
		})
	}
}

func TestEvaluate(t *testing.T) {
	row := dml.Row{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"price":      2.5,
		"quantity":   int64(4),
	}

	testCases := []struct {
		name        string
		instruction string
		want        any
	}{
		{"concat", "first_name + ' ' + last_name", "Ada Lovelace"},
		{"multiply", "price * quantity", 10.0},
		{"precedence", "1 + price * quantity", 11.0},
		{"parens", "(1 + price) * 2", 7.0},
		{"number plus string concatenates", "quantity + 'x'", "4x"},
		{"literal only", "'hello'", "hello"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.instruction, row)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	row := dml.Row{"name": "x"}

	_, err := Evaluate("missing + 1", row)
	assert.Error(t, err)

	_, err = Evaluate("name * 2", row)
	assert.Error(t, err)

	_, err = Evaluate("1 / 0", row)
	assert.Error(t, err)

	_, err = Evaluate("upper(name)", row)
	assert.Error(t, err, "function calls need a registered compute function")
}

func TestProcessor_Lookup(t *testing.T) {
	p := NewProcessor([]Field{
		{Column: "full_name", Instruction: "first_name + ' ' + last_name"},
	})

	field, ok := p.Lookup("full_name")
	require.True(t, ok)
	assert.Equal(t, "first_name + ' ' + last_name", field.Instruction)

	_, ok = p.Lookup("first_name")
	assert.False(t, ok)
}

func TestProcessor_Apply_Instruction(t *testing.T) {
	p := NewProcessor([]Field{
		{Column: "full_name", Instruction: "first_name + ' ' + last_name"},
	})
	field, _ := p.Lookup("full_name")

	rows := []dml.Row{
		{"first_name": "Ada", "last_name": "Lovelace", "id": int64(1)},
		{"first_name": "Grace", "last_name": "Hopper", "id": int64(2)},
	}

	out, err := p.Apply(rows, []Field{field})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Ada Lovelace", out[0]["full_name"])
	assert.Equal(t, "Grace Hopper", out[1]["full_name"])
	// Unrelated columns stay untouched.
	assert.Equal(t, int64(1), out[0]["id"])
	// Input rows are not mutated.
	assert.NotContains(t, rows[0], "full_name")
}

func TestProcessor_Apply_RegisteredFuncWins(t *testing.T) {
	p := NewProcessor([]Field{
		{Column: "full_name", Instruction: "first_name + ' ' + last_name"},
	})
	p.Register("full_name", func(row dml.Row) (any, error) {
		return "override", nil
	})
	field, _ := p.Lookup("full_name")

	out, err := p.Apply([]dml.Row{{"first_name": "Ada", "last_name": "Lovelace"}}, []Field{field})
	require.NoError(t, err)
	assert.Equal(t, "override", out[0]["full_name"])
}

func TestProcessor_Apply_NoFields(t *testing.T) {
	p := NewProcessor(nil)
	rows := []dml.Row{{"id": int64(1)}}

	out, err := p.Apply(rows, nil)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}
