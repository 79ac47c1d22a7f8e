// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package duckdb

import (
	"fmt"

	"github.com/xlkit/xlmerge"
)

// SheetAudit is the verification outcome for one sheet of merged output.
type SheetAudit struct {
	Sheet string

	// BaseRows is the row count of the sheet's counterpart in the base
	// workbook, or -1 when the base workbook has no such sheet.
	BaseRows int64

	MergedRows   int64
	DistinctRows int64

	// DuplicateRows counts rows sharing a canonical key with an earlier
	// row of the same sheet. A merge never appends a duplicate, so this
	// can only carry duplicates the base sheet already had.
	DuplicateRows int64

	// BaseDuplicateRows is the same count over the base counterpart, or
	// zero when there is none.
	BaseDuplicateRows int64

	// MissingBaseRows counts base rows whose canonical key no longer
	// appears in the merged sheet. Merge output always has zero.
	MissingBaseRows int64

	Columns []ColumnSummary
}

// Clean reports whether the sheet passed every check: no base rows lost,
// no shrinkage relative to the base, and no duplicates beyond the ones
// the base sheet already carried.
func (a SheetAudit) Clean() bool {
	if a.MissingBaseRows != 0 {
		return false
	}
	if a.BaseRows < 0 {
		return a.DuplicateRows == 0
	}
	return a.MergedRows >= a.BaseRows && a.DuplicateRows <= a.BaseDuplicateRows
}

// AuditReport aggregates per-sheet verification results.
type AuditReport struct {
	Sheets []SheetAudit
}

// Clean reports whether every audited sheet passed.
func (r *AuditReport) Clean() bool {
	for _, s := range r.Sheets {
		if !s.Clean() {
			return false
		}
	}
	return true
}

// AuditMerge loads every sheet of merged, together with its counterpart in
// base when one exists, and verifies the merge outcome sheet by sheet:
// every base row survived, no sheet shrank, and no duplicate rows exist
// beyond those already present in the base. base may be nil to audit a
// single workbook in isolation.
func (e *Engine) AuditMerge(base, merged *xlmerge.Workbook) (*AuditReport, error) {
	report := &AuditReport{}
	for _, sheet := range merged.SheetNames() {
		mergedTable, _ := merged.Sheet(sheet)
		mergedName := "merged " + sheet
		if err := e.LoadTable(mergedName, mergedTable); err != nil {
			return nil, fmt.Errorf("audit sheet %q: %w", sheet, err)
		}
		summary, err := e.Summarize(mergedName)
		if err != nil {
			return nil, fmt.Errorf("audit sheet %q: %w", sheet, err)
		}

		audit := SheetAudit{
			Sheet:         sheet,
			BaseRows:      -1,
			MergedRows:    summary.RowCount,
			DistinctRows:  summary.DistinctRows,
			DuplicateRows: summary.RowCount - summary.DistinctRows,
			Columns:       summary.Columns,
		}

		if base != nil {
			if baseTable, ok := base.Sheet(sheet); ok {
				baseName := "base " + sheet
				if err := e.LoadTable(baseName, baseTable); err != nil {
					return nil, fmt.Errorf("audit sheet %q: %w", sheet, err)
				}
				baseSummary, err := e.Summarize(baseName)
				if err != nil {
					return nil, fmt.Errorf("audit sheet %q: %w", sheet, err)
				}
				audit.BaseRows = baseSummary.RowCount
				audit.BaseDuplicateRows = baseSummary.RowCount - baseSummary.DistinctRows
				missing, err := e.missingKeys(baseName, mergedName)
				if err != nil {
					return nil, fmt.Errorf("audit sheet %q: %w", sheet, err)
				}
				audit.MissingBaseRows = missing
			}
		}

		report.Sheets = append(report.Sheets, audit)
	}
	return report, nil
}
