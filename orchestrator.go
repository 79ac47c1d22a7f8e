// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SheetStats records the outcome of merging one sheet pair.
type SheetStats struct {
	Sheet        string
	OriginalRows int
	FinalRows    int
	RowsAdded    int
}

// MergeResult is the outcome of a workbook merge: the merged workbook,
// per-sheet statistics for the sheets that were actually merged, and
// aggregate totals across them.
type MergeResult struct {
	Workbook *Workbook
	Sheets   []SheetStats

	// DroppedIncomingSheets lists incoming sheets that had no name match in
	// the base workbook. Such sheets are never incorporated into the output.
	DroppedIncomingSheets []string

	// Fallback reports that the workbooks shared no sheet names and the
	// first sheet of each was merged instead.
	Fallback bool

	TotalOriginalRows int
	TotalFinalRows    int
	TotalRowsAdded    int
}

// Merger applies the sheet merge across whole workbooks. A Merger holds no
// state between calls; the same instance may be used for any number of
// independent merges.
type Merger struct {
	log      *zap.Logger
	parallel int
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithParallelism sets the maximum number of sheets merged concurrently.
// Values below two keep the sequential path. Both paths produce identical
// workbooks and statistics.
func WithParallelism(n int) MergerOption {
	return func(m *Merger) { m.parallel = n }
}

// NewMerger returns a Merger that logs through log. A nil log disables
// logging.
func NewMerger(log *zap.Logger, opts ...MergerOption) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Merger{log: log, parallel: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeWorkbooks merges every common sheet of incoming into base, copies
// base-only sheets through unchanged, and returns the assembled result with
// per-sheet and aggregate statistics. When the two workbooks share no sheet
// names, the first sheet of each is merged instead and the result carries
// only that one sheet.
//
// Sheets present only in the incoming workbook are dropped from the output;
// their names are recorded in the result and logged at warn level. Neither
// input workbook is modified.
func (m *Merger) MergeWorkbooks(base, incoming *Workbook) (*MergeResult, error) {
	common, baseOnly, err := ResolveSheets(base.SheetNames(), incoming.SheetNames())
	if errors.Is(err, ErrNoCommonSheets) {
		m.log.Info("no common sheets, falling back to single-table merge")
		return m.fallbackSingleTable(base, incoming)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve sheets: %w", err)
	}

	res := &MergeResult{
		Workbook:              NewWorkbook(),
		Sheets:                make([]SheetStats, len(common)),
		DroppedIncomingSheets: droppedSheets(incoming.SheetNames(), common),
	}

	// Each sheet merge writes only its own slot, so the parallel path needs
	// no locking and assembles in the same order as the sequential one.
	merged := make([]*Table, len(common))
	mergeOne := func(i int) error {
		name := common[i]
		baseTable, _ := base.Sheet(name)
		incomingTable, _ := incoming.Sheet(name)
		out, added, err := MergeSheet(baseTable, incomingTable)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		merged[i] = out
		res.Sheets[i] = SheetStats{
			Sheet:        name,
			OriginalRows: len(baseTable.Rows),
			FinalRows:    len(out.Rows),
			RowsAdded:    added,
		}
		return nil
	}

	if m.parallel > 1 && len(common) > 1 {
		g := new(errgroup.Group)
		g.SetLimit(m.parallel)
		for i := range common {
			g.Go(func() error { return mergeOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range common {
			if err := mergeOne(i); err != nil {
				return nil, err
			}
		}
	}

	for i, name := range common {
		res.Workbook.SetSheet(name, merged[i])
		m.log.Debug("merged sheet",
			zap.String("sheet", name),
			zap.Int("rows_added", res.Sheets[i].RowsAdded))
	}
	for _, name := range baseOnly {
		baseTable, _ := base.Sheet(name)
		copied, err := baseTable.Clone()
		if err != nil {
			return nil, fmt.Errorf("copy sheet %q: %w", name, err)
		}
		res.Workbook.SetSheet(name, copied)
	}
	for _, name := range res.DroppedIncomingSheets {
		m.log.Warn("incoming-only sheet dropped", zap.String("sheet", name))
	}

	res.tally()
	return res, nil
}

// fallbackSingleTable merges the first sheet of each workbook regardless of
// name. The output workbook carries only the merged sheet, stored under the
// base workbook's first sheet name.
func (m *Merger) fallbackSingleTable(base, incoming *Workbook) (*MergeResult, error) {
	baseName, baseTable, err := base.FirstSheet()
	if err != nil {
		return nil, fmt.Errorf("fallback: base workbook: %w", err)
	}
	incomingName, incomingTable, err := incoming.FirstSheet()
	if err != nil {
		return nil, fmt.Errorf("fallback: incoming workbook: %w", err)
	}

	out, added, err := MergeSheet(baseTable, incomingTable)
	if err != nil {
		return nil, fmt.Errorf("fallback: sheet %q: %w", baseName, err)
	}
	m.log.Debug("fallback merged first sheets",
		zap.String("base_sheet", baseName),
		zap.String("incoming_sheet", incomingName),
		zap.Int("rows_added", added))
	if base.Len() > 1 {
		m.log.Warn("fallback output carries only the first base sheet",
			zap.Int("base_sheets", base.Len()))
	}

	res := &MergeResult{
		Workbook: NewWorkbook(),
		Sheets: []SheetStats{{
			Sheet:        baseName,
			OriginalRows: len(baseTable.Rows),
			FinalRows:    len(out.Rows),
			RowsAdded:    added,
		}},
		Fallback: true,
	}
	res.Workbook.SetSheet(baseName, out)
	for _, name := range incoming.SheetNames() {
		if name != incomingName {
			res.DroppedIncomingSheets = append(res.DroppedIncomingSheets, name)
		}
	}
	for _, name := range res.DroppedIncomingSheets {
		m.log.Warn("incoming-only sheet dropped", zap.String("sheet", name))
	}

	res.tally()
	return res, nil
}

func (res *MergeResult) tally() {
	for _, s := range res.Sheets {
		res.TotalOriginalRows += s.OriginalRows
		res.TotalFinalRows += s.FinalRows
		res.TotalRowsAdded += s.RowsAdded
	}
}

func droppedSheets(incomingNames, common []string) []string {
	commonSet := make(map[string]struct{}, len(common))
	for _, name := range common {
		commonSet[name] = struct{}{}
	}
	var dropped []string
	for _, name := range incomingNames {
		if _, ok := commonSet[name]; !ok {
			dropped = append(dropped, name)
		}
	}
	return dropped
}
