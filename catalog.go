// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

// ResolveSheets catalogs the sheet names of two workbooks: common holds the
// names present in both, in base workbook order; baseOnly holds the names
// present only in the base workbook, also in base order.
//
// When the workbooks share no names, both result slices are still valid and
// the returned error is ErrNoCommonSheets. MergeWorkbooks treats that
// sentinel as the trigger for single-table fallback rather than a failure;
// direct callers can do the same with errors.Is.
func ResolveSheets(baseNames, incomingNames []string) (common, baseOnly []string, err error) {
	incoming := make(map[string]struct{}, len(incomingNames))
	for _, name := range incomingNames {
		incoming[name] = struct{}{}
	}

	common = []string{}
	baseOnly = []string{}
	for _, name := range baseNames {
		if _, ok := incoming[name]; ok {
			common = append(common, name)
		} else {
			baseOnly = append(baseOnly, name)
		}
	}
	if len(common) == 0 {
		return common, baseOnly, ErrNoCommonSheets
	}
	return common, baseOnly, nil
}
