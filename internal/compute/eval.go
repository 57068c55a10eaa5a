package compute

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/davrell/fluentdml/internal/dml"
)

// Evaluate computes an instruction expression against a row.
//
// Supported grammar: identifiers (dependency columns), single- or
// double-quoted string literals, numeric literals, the operators + - * /
// with usual precedence, and parentheses. A + with a string operand
// concatenates; every other arithmetic operator requires numbers. Richer
// instructions go through a registered Func instead.
func Evaluate(instruction string, row dml.Row) (any, error) {
	toks, err := tokenize(instruction)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, row: row}
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected token %q", p.toks[p.pos].text)
	}
	return val, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			// Argument separators only appear inside function calls, which
			// the evaluator does not execute; keep them as operators so the
			// dependency scanner can walk past them.
			toks = append(toks, token{tokOp, ","})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string literal in %q", s)
			}
			toks = append(toks, token{tokString, s[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in %q", c, s)
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '.'
}

type parser struct {
	toks []token
	pos  int
	row  dml.Row
}

func precedence(op string) int {
	switch op {
	case "+", "-":
		return 1
	case "*", "/":
		return 2
	}
	return 0
}

// parseExpr is a precedence-climbing expression parser.
func (p *parser) parseExpr(minPrec int) (any, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.toks) && p.toks[p.pos].kind == tokOp {
		op := p.toks[p.pos].text
		prec := precedence(op)
		if prec == 0 || prec < minPrec {
			break
		}
		p.pos++
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left, err = apply(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseOperand() (any, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokLParen:
		p.pos++
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return val, nil
	case tokString:
		p.pos++
		return tok.text, nil
	case tokNumber:
		p.pos++
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", tok.text, err)
		}
		return f, nil
	case tokIdent:
		if p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokLParen {
			return nil, fmt.Errorf("function %q needs a registered compute function", tok.text)
		}
		p.pos++
		val, ok := p.row[tok.text]
		if !ok {
			return nil, fmt.Errorf("column %q not present in row", tok.text)
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}

func apply(op string, left, right any) (any, error) {
	if op == "+" {
		ls, lok := asString(left)
		rs, rok := asString(right)
		if lok || rok {
			if !lok {
				ls = stringify(left)
			}
			if !rok {
				rs = stringify(right)
			}
			return ls + rs, nil
		}
	}

	lf, err := asNumber(left)
	if err != nil {
		return nil, err
	}
	rf, err := asNumber(right)
	if err != nil {
		return nil, err
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}

func stringify(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
