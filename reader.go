// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

// ReadOption configures workbook reading.
type ReadOption func(*readOptions)

type readOptions struct {
	password string
}

// WithPassword supplies the password for an encrypted workbook.
func WithPassword(password string) ReadOption {
	return func(o *readOptions) { o.password = password }
}

// ReadWorkbook reads every sheet of the workbook at path into memory. The
// first row of each sheet provides the column names; the remaining rows
// become data rows with cells parsed to int64, float64, bool, or string,
// and blank cells read as nil.
//
// Duplicate column names are disambiguated with a numeric suffix ("name",
// "name.1", ...) and blank header cells are named by position
// ("Unnamed: 0", ...), matching the conventions of the dataframe tooling
// this package replaces.
//
// Open and parse failures wrap ErrSourceUnreadable. A source that turns
// out to be a legacy OLE compound document (.xls) is reported as such.
func ReadWorkbook(path string, opts ...ReadOption) (*Workbook, error) {
	var ro readOptions
	for _, opt := range opts {
		opt(&ro)
	}

	f, err := excelize.OpenFile(path, excelize.Options{Password: ro.password, RawCellValue: true})
	if err != nil {
		return nil, newSourceError(path, describeOpenFailure(path, err))
	}
	defer f.Close()

	wb := NewWorkbook()
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, newSourceError(path, fmt.Errorf("sheet %q: %w", sheet, err))
		}
		wb.SetSheet(sheet, tableFromRows(rows))
	}
	return wb, nil
}

// describeOpenFailure refines an open error: when the file exists but is an
// OLE compound container, the caller almost certainly has a legacy .xls
// workbook rather than a corrupt .xlsx.
func describeOpenFailure(path string, err error) error {
	f, ferr := os.Open(path)
	if ferr != nil {
		return err
	}
	defer f.Close()
	if _, cerr := mscfb.New(f); cerr == nil {
		return fmt.Errorf("legacy OLE compound document, convert .xls to .xlsx first (%w)", err)
	}
	return err
}

// tableFromRows builds a Table from raw sheet rows: first row headers, the
// rest data. Data rows wider than the header row extend it with blank
// header cells before mangling.
func tableFromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{}
	}

	width := len(rows[0])
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	header := make([]string, width)
	copy(header, rows[0])

	t := &Table{Columns: mangleHeaders(header), Rows: make([][]any, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		cells := make([]any, len(row))
		for i, raw := range row {
			cells[i] = parseCell(raw)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// mangleHeaders makes header names unique and non-empty: blank cells
// become "Unnamed: <pos>" and repeated names get ".<n>" suffixes.
func mangleHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		for {
			n, ok := seen[name]
			if !ok {
				break
			}
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

// parseCell converts one raw cell string to a typed value. Whitespace-only
// cells read as nil.
func parseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	switch s {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return raw
}
