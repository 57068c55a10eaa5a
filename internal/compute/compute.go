// Package compute resolves computed output columns: columns whose values are
// derived from real dependency columns rather than stored directly.
//
// A computed field is declared as {column, instruction}. The instruction is
// an expression over dependency columns ("first_name + ' ' + last_name",
// "price * quantity"). The processor can materialize values either through a
// registered Go function for the column or by evaluating the instruction
// with the built-in expression evaluator.
package compute

import (
	"fmt"
	"sync"

	"github.com/davrell/fluentdml/internal/dml"
)

// Field declares one computed column.
type Field struct {
	Column      string `yaml:"column" json:"column"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

// Func computes the value of one computed column for a row.
// Mirrors the register-a-Go-function pattern: when a Func is registered for
// a column it takes precedence over instruction evaluation.
type Func func(row dml.Row) (any, error)

// Processor holds the computed-field set for one database and materializes
// values after fetch. The field list is read-only after construction; the
// function table is guarded for concurrent registration.
type Processor struct {
	fields []Field

	mu    sync.RWMutex
	funcs map[string]Func
}

// NewProcessor creates a processor over a fixed field set.
func NewProcessor(fields []Field) *Processor {
	copied := make([]Field, len(fields))
	copy(copied, fields)
	return &Processor{
		fields: copied,
		funcs:  make(map[string]Func),
	}
}

// Register installs a Go function for a computed column.
func (p *Processor) Register(column string, fn Func) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funcs[column] = fn
}

// Fields returns the declared computed fields.
func (p *Processor) Fields() []Field {
	return p.fields
}

// Lookup returns the field declaration for a column, if the column is
// computed.
func (p *Processor) Lookup(column string) (Field, bool) {
	for _, f := range p.fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Dependencies returns the real columns a field's instruction reads.
func (p *Processor) Dependencies(f Field) []string {
	return ExtractDependencies(f.Instruction)
}

// Apply materializes the given computed fields on each row, leaving
// unrelated columns untouched. Rows are copied, not mutated.
func (p *Processor) Apply(rows []dml.Row, fields []Field) ([]dml.Row, error) {
	if len(fields) == 0 {
		return rows, nil
	}

	out := make([]dml.Row, len(rows))
	for i, row := range rows {
		computed := row.Clone()
		for _, f := range fields {
			val, err := p.materialize(f, row)
			if err != nil {
				return nil, fmt.Errorf("compute %s: %w", f.Column, err)
			}
			computed[f.Column] = val
		}
		out[i] = computed
	}
	return out, nil
}

func (p *Processor) materialize(f Field, row dml.Row) (any, error) {
	p.mu.RLock()
	fn, ok := p.funcs[f.Column]
	p.mu.RUnlock()
	if ok {
		return fn(row)
	}
	return Evaluate(f.Instruction, row)
}

// ExtractDependencies returns the column names an instruction reads, in
// first-reference order, de-duplicated. Identifiers directly followed by an
// opening parenthesis are function names, not columns; quoted text and
// numeric literals are skipped.
func ExtractDependencies(instruction string) []string {
	var deps []string
	seen := make(map[string]bool)

	toks, err := tokenize(instruction)
	if err != nil {
		return nil
	}
	for i, tok := range toks {
		if tok.kind != tokIdent {
			continue
		}
		if i+1 < len(toks) && toks[i+1].kind == tokLParen {
			continue // function name
		}
		if seen[tok.text] {
			continue
		}
		seen[tok.text] = true
		deps = append(deps, tok.text)
	}
	return deps
}
