// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// Table is an ordered sequence of named columns over an ordered sequence of
// rows. A cell holds string, int64, float64, bool, or nil for null/empty.
// Rows are positional slices aligned to Columns; a row shorter than Columns
// reads as nil-padded. Row order is significant and is preserved by every
// transformation in this package.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable returns an empty table with the given column names.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Clone returns a deep copy of the table sharing no mutable state with the
// receiver.
func (t *Table) Clone() (*Table, error) {
	out := &Table{}
	if err := deepcopy.Copy(out, t); err != nil {
		return nil, fmt.Errorf("clone table: %w", err)
	}
	return out, nil
}

// ColumnIndex returns the position of the named column, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AppendRow appends one row to the table. The slice is stored as given.
func (t *Table) AppendRow(cells ...any) {
	t.Rows = append(t.Rows, cells)
}

// Cell returns the value at row r under the named column, or nil when the
// column is absent, the row index is out of range, or the row does not
// extend that far.
func (t *Table) Cell(r int, column string) any {
	if r < 0 || r >= len(t.Rows) {
		return nil
	}
	return cellAt(t.Rows[r], t.ColumnIndex(column))
}

func cellAt(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

// SetColumn writes values into the named column, appending the column when
// absent. Row r receives values[r]; rows beyond len(values) get nil. Rows
// shorter than the column's position are nil-padded first.
func (t *Table) SetColumn(name string, values []any) {
	ci := t.ColumnIndex(name)
	if ci < 0 {
		ci = len(t.Columns)
		t.Columns = append(t.Columns, name)
	}
	for r := range t.Rows {
		for len(t.Rows[r]) <= ci {
			t.Rows[r] = append(t.Rows[r], nil)
		}
		if r < len(values) {
			t.Rows[r][ci] = values[r]
		} else {
			t.Rows[r][ci] = nil
		}
	}
}

// CanonicalString converts a cell to its canonical textual form, the form
// used for duplicate detection and for loading tables into the audit engine.
// Numeric 5 and the text "5" coerce to the same form; nil canonicalizes to
// the empty string.
func CanonicalString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case bool:
		return strconv.FormatBool(c)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

// rowKey builds an exact, order-sensitive key for one row over width cells.
// Each cell's canonical form is length-prefixed, so no cell value can
// collide with a separator. Rows shorter than width key as nil-padded.
func rowKey(cells []any, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		var s string
		if i < len(cells) {
			s = CanonicalString(cells[i])
		}
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}

// Workbook maps sheet names to tables, preserving the order in which sheets
// were added. Sheet names are unique within a workbook.
type Workbook struct {
	order  []string
	sheets map[string]*Table
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{sheets: make(map[string]*Table)}
}

// SetSheet adds or replaces the named sheet. The first addition of a name
// fixes that sheet's position in the workbook order.
func (w *Workbook) SetSheet(name string, t *Table) {
	if _, ok := w.sheets[name]; !ok {
		w.order = append(w.order, name)
	}
	w.sheets[name] = t
}

// Sheet returns the table stored under name.
func (w *Workbook) Sheet(name string) (*Table, bool) {
	t, ok := w.sheets[name]
	return t, ok
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	return append([]string{}, w.order...)
}

// Len returns the number of sheets in the workbook.
func (w *Workbook) Len() int { return len(w.order) }

// FirstSheet returns the first sheet in stored order. It is the sheet the
// single-table fallback compares when two workbooks share no sheet names.
func (w *Workbook) FirstSheet() (string, *Table, error) {
	if len(w.order) == 0 {
		return "", nil, ErrEmptyWorkbook
	}
	name := w.order[0]
	return name, w.sheets[name], nil
}
