// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable is returned when a workbook path cannot be opened
	// or parsed as a spreadsheet container. It is always wrapped with the
	// offending path and the underlying cause.
	ErrSourceUnreadable = errors.New("source workbook unreadable")

	// ErrNoCommonSheets is returned by SheetCatalog.Resolve when the two
	// workbooks share no sheet names. MergeWorkbooks treats this as the
	// trigger for single-table fallback rather than a failure.
	ErrNoCommonSheets = errors.New("no common sheets between workbooks")

	// ErrEmptyWorkbook is returned when an operation needs at least one
	// sheet and the workbook has none.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")

	// ErrSheetNotFound is returned when a named sheet is absent from a
	// workbook, e.g. the yield target sheet.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrColumnNotFound is returned by yield specs that reference a column
	// missing from the target table.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidNumberFormat is returned when a configured column number
	// format cannot be parsed. It surfaces before anything is written.
	ErrInvalidNumberFormat = errors.New("invalid number format")
)

// BackupError reports a failed backup of the original workbook. When this
// error is returned no merged output has been written, so the original file
// on disk is untouched.
type BackupError struct {
	Path string
	Err  error
}

// Error returns the formatted error message.
func (e *BackupError) Error() string {
	return fmt.Sprintf("backup to %q failed: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackupError) Unwrap() error { return e.Err }

// WriteError reports a failed write of the merged workbook. The backup file
// written beforehand remains on disk for manual recovery.
type WriteError struct {
	Path string
	Err  error
}

// Error returns the formatted error message.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %q failed: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error { return e.Err }

func newSourceError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, path, err)
}
