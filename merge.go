// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import "fmt"

// MergeSheet merges one incoming table into one base table. Both tables are
// column-aligned, then every incoming row not already present in the base is
// appended in its original relative order. Neither input is modified.
//
// rowsAdded is the number of appended rows; zero means the incoming table
// contributed nothing new, which is a successful no-op, not an error.
func MergeSheet(base, incoming *Table) (merged *Table, rowsAdded int, err error) {
	alignedBase, alignedIncoming, err := AlignColumns(base, incoming)
	if err != nil {
		return nil, 0, fmt.Errorf("merge: %w", err)
	}

	fresh := NewRows(alignedBase, alignedIncoming)
	alignedBase.Rows = append(alignedBase.Rows, fresh.Rows...)
	return alignedBase, len(fresh.Rows), nil
}
