// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"fmt"
	"sort"
)

// AlignColumns reconciles two tables to one canonical column layout: the
// lexicographically sorted union of both column sets. Columns absent from a
// table are added with every cell nil. Both returned tables carry exactly
// the same column order and the same row counts as their inputs; the inputs
// themselves are never modified.
//
// Zero-row tables are valid and produce zero-row outputs with the full
// column set.
func AlignColumns(base, incoming *Table) (*Table, *Table, error) {
	all := unionColumns(base.Columns, incoming.Columns)

	alignedBase, err := alignTo(base, all)
	if err != nil {
		return nil, nil, fmt.Errorf("align base table: %w", err)
	}
	alignedIncoming, err := alignTo(incoming, all)
	if err != nil {
		return nil, nil, fmt.Errorf("align incoming table: %w", err)
	}
	return alignedBase, alignedIncoming, nil
}

// unionColumns returns the sorted union of two column name lists.
func unionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	all := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			all = append(all, name)
		}
	}
	sort.Strings(all)
	return all
}

// alignTo deep-copies t and permutes the copy's cells into the given column
// order, nil-filling columns t does not have.
func alignTo(t *Table, columns []string) (*Table, error) {
	src, err := t.Clone()
	if err != nil {
		return nil, err
	}

	index := make([]int, len(columns))
	for i, name := range columns {
		index[i] = src.ColumnIndex(name)
	}

	out := &Table{
		Columns: append([]string{}, columns...),
		Rows:    make([][]any, len(src.Rows)),
	}
	for r, row := range src.Rows {
		cells := make([]any, len(columns))
		for i, ci := range index {
			cells[i] = cellAt(row, ci)
		}
		out.Rows[r] = cells
	}
	return out, nil
}
