// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

// RowKey returns the canonical duplicate-detection key for row r: the
// ordered tuple of the row's canonical cell strings, length-prefixed so no
// cell content can collide with the tuple encoding. Two rows with equal
// keys hold equal canonical values in every column.
func (t *Table) RowKey(r int) string {
	return rowKey(t.Rows[r], len(t.Columns))
}

// NewRows returns the rows of alignedIncoming whose keys appear neither in
// alignedBase nor earlier in alignedIncoming itself, preserving their
// relative order. Both tables must share an identical column layout, as
// produced by AlignColumns.
//
// Membership is an exact key-set lookup, not a hash comparison, so equal
// keys always mean equal canonical rows. An empty incoming table yields an
// empty result; an empty base table yields every distinct incoming row.
//
// The returned table shares row storage with alignedIncoming.
func NewRows(alignedBase, alignedIncoming *Table) *Table {
	seen := make(map[string]struct{}, len(alignedBase.Rows))
	for r := range alignedBase.Rows {
		seen[alignedBase.RowKey(r)] = struct{}{}
	}

	out := &Table{Columns: append([]string{}, alignedIncoming.Columns...)}
	for r, row := range alignedIncoming.Rows {
		key := alignedIncoming.RowKey(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out
}
