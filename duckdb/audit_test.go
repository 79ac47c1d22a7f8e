// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package duckdb

import (
	"testing"

	"github.com/xlkit/xlmerge"
)

func TestAuditCleanMerge(t *testing.T) {
	base := xlmerge.NewWorkbook()
	baseLots := xlmerge.NewTable("lot", "qty_in", "qty_out")
	baseLots.AppendRow("L001", int64(100), int64(97))
	baseLots.AppendRow("L002", int64(80), int64(75))
	base.SetSheet("hbm_test_yield", baseLots)

	incoming := xlmerge.NewWorkbook()
	incomingLots := xlmerge.NewTable("lot", "qty_in", "qty_out")
	incomingLots.AppendRow("L002", int64(80), int64(75))
	incomingLots.AppendRow("L004", int64(60), int64(58))
	incoming.SetSheet("hbm_test_yield", incomingLots)

	res, err := xlmerge.NewMerger(nil).MergeWorkbooks(base, incoming)
	if err != nil {
		t.Fatalf("Failed to merge workbooks: %v", err)
	}

	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(base, res.Workbook)
	if err != nil {
		t.Fatalf("Failed to audit merge: %v", err)
	}
	if !report.Clean() {
		t.Errorf("Expected clean audit, got %+v", report.Sheets)
	}
	if len(report.Sheets) != 1 {
		t.Fatalf("Expected 1 audited sheet, got %d", len(report.Sheets))
	}

	audit := report.Sheets[0]
	if audit.BaseRows != 2 {
		t.Errorf("Expected 2 base rows, got %d", audit.BaseRows)
	}
	if audit.MergedRows != 3 {
		t.Errorf("Expected 3 merged rows, got %d", audit.MergedRows)
	}
	if audit.DistinctRows != 3 {
		t.Errorf("Expected 3 distinct rows, got %d", audit.DistinctRows)
	}
	if audit.DuplicateRows != 0 {
		t.Errorf("Expected no duplicate rows, got %d", audit.DuplicateRows)
	}
	if audit.MissingBaseRows != 0 {
		t.Errorf("Expected no missing base rows, got %d", audit.MissingBaseRows)
	}
}

func TestAuditToleratesBaseDuplicates(t *testing.T) {
	// A base that already holds the same row twice merges cleanly; the
	// audit must not blame the merge for duplicates it inherited.
	base := xlmerge.NewWorkbook()
	baseLots := xlmerge.NewTable("lot", "qty")
	baseLots.AppendRow("L001", int64(10))
	baseLots.AppendRow("L001", int64(10))
	base.SetSheet("lots", baseLots)

	incoming := xlmerge.NewWorkbook()
	incomingLots := xlmerge.NewTable("lot", "qty")
	incomingLots.AppendRow("L002", int64(20))
	incoming.SetSheet("lots", incomingLots)

	res, err := xlmerge.NewMerger(nil).MergeWorkbooks(base, incoming)
	if err != nil {
		t.Fatalf("Failed to merge workbooks: %v", err)
	}

	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(base, res.Workbook)
	if err != nil {
		t.Fatalf("Failed to audit merge: %v", err)
	}

	audit := report.Sheets[0]
	if audit.DuplicateRows != 1 {
		t.Errorf("Expected 1 inherited duplicate, got %d", audit.DuplicateRows)
	}
	if audit.BaseDuplicateRows != 1 {
		t.Errorf("Expected 1 base duplicate, got %d", audit.BaseDuplicateRows)
	}
	if !report.Clean() {
		t.Errorf("Expected clean audit despite inherited duplicates, got %+v", audit)
	}
}

func TestAuditDetectsIntroducedDuplicates(t *testing.T) {
	base := xlmerge.NewWorkbook()
	baseLots := xlmerge.NewTable("lot", "qty")
	baseLots.AppendRow("L001", int64(10))
	base.SetSheet("lots", baseLots)

	// Hand-built output with a duplicate the base never had.
	merged := xlmerge.NewWorkbook()
	mergedLots := xlmerge.NewTable("lot", "qty")
	mergedLots.AppendRow("L001", int64(10))
	mergedLots.AppendRow("L002", int64(20))
	mergedLots.AppendRow("L002", int64(20))
	merged.SetSheet("lots", mergedLots)

	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(base, merged)
	if err != nil {
		t.Fatalf("Failed to audit: %v", err)
	}
	if report.Clean() {
		t.Error("Expected audit to flag the introduced duplicate")
	}
	if report.Sheets[0].DuplicateRows != 1 {
		t.Errorf("Expected 1 duplicate row, got %d", report.Sheets[0].DuplicateRows)
	}
}

func TestAuditDetectsMissingBaseRows(t *testing.T) {
	base := xlmerge.NewWorkbook()
	baseLots := xlmerge.NewTable("lot", "qty")
	baseLots.AppendRow("L001", int64(10))
	baseLots.AppendRow("L002", int64(20))
	base.SetSheet("lots", baseLots)

	// Hand-built output that lost a base row.
	merged := xlmerge.NewWorkbook()
	mergedLots := xlmerge.NewTable("lot", "qty")
	mergedLots.AppendRow("L001", int64(10))
	mergedLots.AppendRow("L003", int64(30))
	merged.SetSheet("lots", mergedLots)

	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(base, merged)
	if err != nil {
		t.Fatalf("Failed to audit: %v", err)
	}
	if report.Clean() {
		t.Error("Expected audit to flag the lost base row")
	}
	if report.Sheets[0].MissingBaseRows != 1 {
		t.Errorf("Expected 1 missing base row, got %d", report.Sheets[0].MissingBaseRows)
	}
}

func TestAuditWithoutBase(t *testing.T) {
	wb := xlmerge.NewWorkbook()
	lots := xlmerge.NewTable("lot", "qty")
	lots.AppendRow("L001", int64(10))
	lots.AppendRow("L002", int64(20))
	wb.SetSheet("lots", lots)

	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(nil, wb)
	if err != nil {
		t.Fatalf("Failed to audit without base: %v", err)
	}
	if !report.Clean() {
		t.Errorf("Expected clean standalone audit, got %+v", report.Sheets)
	}
	if report.Sheets[0].BaseRows != -1 {
		t.Errorf("Expected BaseRows -1 without a base workbook, got %d", report.Sheets[0].BaseRows)
	}
}
