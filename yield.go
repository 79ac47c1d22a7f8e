// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

// YieldMode selects how a computed column's values are produced.
type YieldMode string

// Supported yield modes.
const (
	// YieldConstant fills the column with one literal value.
	YieldConstant YieldMode = "constant"
	// YieldCopyColumn copies values from an existing column.
	YieldCopyColumn YieldMode = "copyColumn"
	// YieldExpression evaluates an arithmetic expression over existing
	// columns for every row.
	YieldExpression YieldMode = "expression"
)

// YieldSpec describes one computed column.
//
// Expression syntax: numeric literals, column references, + - * /, unary
// minus, and parentheses. A bare identifier is a column reference; names
// containing spaces or operator characters are written double-quoted, as
// in "Data 2" / "Data 3". Functions and any other operators are rejected
// at parse time, and a leading "=" is tolerated and stripped.
type YieldSpec struct {
	Column string    `yaml:"column"`
	Mode   YieldMode `yaml:"mode"`
	Value  float64   `yaml:"value,omitempty"`  // constant mode
	Source string    `yaml:"source,omitempty"` // copyColumn mode
	Expr   string    `yaml:"expr,omitempty"`   // expression mode
	Format string    `yaml:"format,omitempty"` // optional number format for writing
}

// ApplyYields returns a copy of t with every spec's column appended, or
// overwritten in place when a column of that name already exists, in spec
// order. The input table is not modified.
//
// Expression results are normalized: division by zero, a missing or
// non-numeric operand, NaN and infinities all come out as numeric 0 for
// the affected row, never as an error or an infinity in the output.
func ApplyYields(t *Table, specs []YieldSpec) (*Table, error) {
	out, err := t.Clone()
	if err != nil {
		return nil, fmt.Errorf("yield: %w", err)
	}
	for _, spec := range specs {
		values, err := yieldValues(out, spec)
		if err != nil {
			return nil, err
		}
		out.SetColumn(spec.Column, values)
	}
	return out, nil
}

// ApplyWorkbookYields applies cfg's yield columns to the configured target
// sheet of wb, returning a new workbook. Sheets other than the target are
// shared with the input, not copied; the input workbook itself is not
// modified.
func ApplyWorkbookYields(wb *Workbook, cfg YieldConfig) (*Workbook, error) {
	target, ok := wb.Sheet(cfg.TargetSheet)
	if !ok {
		return nil, fmt.Errorf("yield: sheet %q: %w", cfg.TargetSheet, ErrSheetNotFound)
	}
	updated, err := ApplyYields(target, cfg.Columns)
	if err != nil {
		return nil, err
	}

	out := NewWorkbook()
	for _, name := range wb.SheetNames() {
		if name == cfg.TargetSheet {
			out.SetSheet(name, updated)
			continue
		}
		t, _ := wb.Sheet(name)
		out.SetSheet(name, t)
	}
	return out, nil
}

// YieldOutputPath returns the conventional output location for a workbook
// with yields applied: the input path with suffix inserted before the
// extension, e.g. "data.xlsx" becomes "data_with_yields.xlsx".
func YieldOutputPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func yieldValues(t *Table, spec YieldSpec) ([]any, error) {
	switch spec.Mode {
	case YieldConstant, "":
		// an unset mode keeps the historical default of a constant column
		values := make([]any, len(t.Rows))
		for i := range values {
			values[i] = spec.Value
		}
		return values, nil

	case YieldCopyColumn:
		ci := t.ColumnIndex(spec.Source)
		if ci < 0 {
			return nil, fmt.Errorf("yield column %q: source %q: %w", spec.Column, spec.Source, ErrColumnNotFound)
		}
		values := make([]any, len(t.Rows))
		for r, row := range t.Rows {
			values[r] = cellAt(row, ci)
		}
		return values, nil

	case YieldExpression:
		expr, err := parseYieldExpr(spec.Expr)
		if err != nil {
			return nil, fmt.Errorf("yield column %q: %w", spec.Column, err)
		}
		colIndex := make(map[string]int, len(t.Columns))
		for i, name := range t.Columns {
			if _, ok := colIndex[name]; !ok {
				colIndex[name] = i
			}
		}
		values := make([]any, len(t.Rows))
		for r, row := range t.Rows {
			v := expr.eval(func(name string) (float64, bool) {
				ci, ok := colIndex[name]
				if !ok {
					return 0, false
				}
				return numericCell(cellAt(row, ci))
			})
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0.0
			}
			values[r] = v
		}
		return values, nil

	default:
		return nil, fmt.Errorf("yield column %q: unknown mode %q", spec.Column, spec.Mode)
	}
}

// numericCell extracts a float64 from a cell. Strings parse through
// strconv; nil and unparsable values report false.
func numericCell(v any) (float64, bool) {
	switch c := v.(type) {
	case nil:
		return 0, false
	case float64:
		return c, true
	case int64:
		return float64(c), true
	case int:
		return float64(c), true
	case bool:
		if c {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// yieldExpr is a closed arithmetic expression over column references and
// numeric literals, evaluated directly against each row. lookup resolves a
// column name to its numeric value; a false return means the value is
// missing or non-numeric, which poisons the whole row's result to NaN so
// the caller normalizes it to zero.
type yieldExpr interface {
	eval(lookup func(name string) (float64, bool)) float64
}

type exprConst float64

func (e exprConst) eval(func(string) (float64, bool)) float64 { return float64(e) }

type exprColumn string

func (e exprColumn) eval(lookup func(string) (float64, bool)) float64 {
	v, ok := lookup(string(e))
	if !ok {
		return math.NaN()
	}
	return v
}

type exprNeg struct{ operand yieldExpr }

func (e exprNeg) eval(lookup func(string) (float64, bool)) float64 {
	return -e.operand.eval(lookup)
}

type exprBinary struct {
	op          byte // one of + - * /
	left, right yieldExpr
}

func (e exprBinary) eval(lookup func(string) (float64, bool)) float64 {
	l := e.left.eval(lookup)
	r := e.right.eval(lookup)
	switch e.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	default:
		return l / r
	}
}

// parseYieldExpr parses expression text into an evaluable tree, using the
// same tokenizer the spreadsheet formula engine uses and accepting only
// the closed operator set.
func parseYieldExpr(text string) (yieldExpr, error) {
	formula := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "="))
	if formula == "" {
		return nil, fmt.Errorf("empty yield expression")
	}
	tokens := efp.ExcelParser().Parse(formula)
	if tokens == nil {
		return nil, fmt.Errorf("unparsable yield expression %q", text)
	}

	p := &yieldParser{src: text}
	for _, tok := range tokens {
		if tok.TType == efp.TokenTypeWhitespace {
			continue
		}
		p.tokens = append(p.tokens, tok)
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("yield expression %q: unexpected %q", p.src, p.peek().TValue)
	}
	return expr, nil
}

// yieldParser is a recursive-descent parser with the usual two precedence
// levels over the efp token stream.
type yieldParser struct {
	src    string
	tokens []efp.Token
	pos    int
}

func (p *yieldParser) done() bool { return p.pos >= len(p.tokens) }

func (p *yieldParser) peek() efp.Token {
	if p.done() {
		return efp.Token{}
	}
	return p.tokens[p.pos]
}

func (p *yieldParser) next() efp.Token {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *yieldParser) parseExpr() (yieldExpr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.done() {
		tok := p.peek()
		if tok.TType != efp.TokenTypeOperatorInfix || (tok.TValue != "+" && tok.TValue != "-") {
			break
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = exprBinary{op: tok.TValue[0], left: left, right: right}
	}
	return left, nil
}

func (p *yieldParser) parseTerm() (yieldExpr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for !p.done() {
		tok := p.peek()
		if tok.TType != efp.TokenTypeOperatorInfix || (tok.TValue != "*" && tok.TValue != "/") {
			break
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = exprBinary{op: tok.TValue[0], left: left, right: right}
	}
	return left, nil
}

func (p *yieldParser) parseFactor() (yieldExpr, error) {
	if p.done() {
		return nil, fmt.Errorf("yield expression %q: unexpected end", p.src)
	}
	tok := p.next()
	switch {
	case tok.TType == efp.TokenTypeOperatorPrefix && tok.TValue == "-":
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return exprNeg{operand: operand}, nil

	case tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeNumber:
		v, err := strconv.ParseFloat(tok.TValue, 64)
		if err != nil {
			return nil, fmt.Errorf("yield expression %q: bad number %q", p.src, tok.TValue)
		}
		return exprConst(v), nil

	case tok.TType == efp.TokenTypeOperand &&
		(tok.TSubType == efp.TokenSubTypeRange || tok.TSubType == efp.TokenSubTypeText):
		return exprColumn(tok.TValue), nil

	case tok.TType == efp.TokenTypeSubexpression && tok.TSubType == efp.TokenSubTypeStart:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if stop := p.next(); stop.TType != efp.TokenTypeSubexpression || stop.TSubType != efp.TokenSubTypeStop {
			return nil, fmt.Errorf("yield expression %q: unbalanced parentheses", p.src)
		}
		return inner, nil

	case tok.TType == efp.TokenTypeFunction:
		return nil, fmt.Errorf("yield expression %q: functions are not supported", p.src)

	default:
		return nil, fmt.Errorf("yield expression %q: unexpected %q", p.src, tok.TValue)
	}
}
