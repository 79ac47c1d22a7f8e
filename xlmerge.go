// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package xlmerge merges multi-sheet spreadsheet workbooks, appending only
// rows that are not already present, and derives computed ratio columns
// from existing ones. It grew out of a workflow for reconciling
// manufacturing-test exports: a base workbook accumulates results and
// periodic incoming exports are folded in without duplicating records.
//
// The pipeline reads both workbooks into memory, reconciles each common
// sheet pair to one column layout, appends the incoming rows whose
// canonical form is not already present in the base, copies base-only
// sheets through unchanged, and persists the result after snapshotting the
// original file to a sibling backup path. Sheets that exist only in the
// incoming workbook are not carried over.
package xlmerge

import (
	"fmt"

	"go.uber.org/zap"
)

// MergeFiles runs the whole pipeline over two workbook files: read both,
// merge, back up the base file, and write the result. An empty targetPath
// overwrites basePath, which the backup makes safe. The returned result
// carries the merged workbook and its statistics even though the workbook
// has already been written.
func MergeFiles(log *zap.Logger, cfg *Config, basePath, incomingPath, targetPath string, readOpts ...ReadOption) (*MergeResult, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base, err := ReadWorkbook(basePath, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("read base workbook: %w", err)
	}
	incoming, err := ReadWorkbook(incomingPath, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("read incoming workbook: %w", err)
	}

	res, err := NewMerger(log, WithParallelism(cfg.Merge.Parallelism)).MergeWorkbooks(base, incoming)
	if err != nil {
		return nil, err
	}

	if targetPath == "" {
		targetPath = basePath
	}
	persister := NewPersister(log, WithBackupSuffix(cfg.Backup.MergeSuffix))
	if err := persister.Persist(basePath, res.Workbook, targetPath); err != nil {
		return nil, err
	}
	return res, nil
}
