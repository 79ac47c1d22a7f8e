package xlmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixtureSheet struct {
	name string
	rows [][]any
}

// writeFixture builds an xlsx file with the given sheets in order. Nil
// cells are left unset.
func writeFixture(t *testing.T, path string, sheets []fixtureSheet) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for si, s := range sheets {
		if si == 0 {
			if s.name != f.GetSheetName(0) {
				require.NoError(t, f.SetSheetName(f.GetSheetName(0), s.name))
			}
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.name, cell, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lots.xlsx")
	writeFixture(t, path, []fixtureSheet{
		{
			name: "hbm_test_yield",
			rows: [][]any{
				{"lot", "qty_in", "yield", "passed", "note"},
				{"L001", 100, 0.97, "TRUE", "ok"},
				{"L002", nil, 3.5, "FALSE", ""},
			},
		},
		{
			name: "notes",
			rows: [][]any{{"author", "text"}},
		},
	})

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"hbm_test_yield", "notes"}, wb.SheetNames())

	lots, ok := wb.Sheet("hbm_test_yield")
	require.True(t, ok)
	assert.Equal(t, []string{"lot", "qty_in", "yield", "passed", "note"}, lots.Columns)
	require.Len(t, lots.Rows, 2)

	assert.Equal(t, "L001", lots.Cell(0, "lot"))
	assert.Equal(t, int64(100), lots.Cell(0, "qty_in"))
	assert.Equal(t, 0.97, lots.Cell(0, "yield"))
	assert.Equal(t, true, lots.Cell(0, "passed"))

	assert.Nil(t, lots.Cell(1, "qty_in"), "blank cell reads as nil")
	assert.Equal(t, 3.5, lots.Cell(1, "yield"))
	assert.Equal(t, false, lots.Cell(1, "passed"))
	assert.Nil(t, lots.Cell(1, "note"))

	// Header-only sheet: columns without rows.
	notes, ok := wb.Sheet("notes")
	require.True(t, ok)
	assert.Equal(t, []string{"author", "text"}, notes.Columns)
	assert.Empty(t, notes.Rows)
}

func TestReadWorkbookMangledHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.xlsx")
	writeFixture(t, path, []fixtureSheet{{
		name: "data",
		rows: [][]any{
			{"val", "val", "", "val.1"},
			{1, 2, 3, 4},
		},
	}})

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)

	data, _ := wb.Sheet("data")
	assert.Equal(t, []string{"val", "val.1", "Unnamed: 2", "val.1.1"}, data.Columns)
	assert.Equal(t, int64(3), data.Cell(0, "Unnamed: 2"))
	assert.Equal(t, int64(4), data.Cell(0, "val.1.1"))
}

func TestReadWorkbookRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.xlsx")
	writeFixture(t, path, []fixtureSheet{{
		name: "data",
		rows: [][]any{
			{"a"},
			{1, 2},
		},
	}})

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)

	data, _ := wb.Sheet("data")
	// Data wider than the header grows the header with positional names.
	assert.Equal(t, []string{"a", "Unnamed: 1"}, data.Columns)
	assert.Equal(t, int64(2), data.Cell(0, "Unnamed: 1"))
}

func TestReadWorkbookMissingFile(t *testing.T) {
	_, err := ReadWorkbook(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestReadWorkbookNotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip archive"), 0o644))

	_, err := ReadWorkbook(path)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestParseCell(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{"", nil},
		{"   ", nil},
		{"5", int64(5)},
		{"007", int64(7)},
		{"-3", int64(-3)},
		{"3.5", 3.5},
		{"1e3", 1000.0},
		{"TRUE", true},
		{"FALSE", false},
		{"True", "True"},
		{"L001", "L001"},
		{" padded ", " padded "},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseCell(c.raw), "raw %q", c.raw)
	}
}

func TestMangleHeaders(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a", "a", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"a", "a", "a.1"}, []string{"a", "a.1", "a.1.1"}},
		{[]string{"", "x", ""}, []string{"Unnamed: 0", "x", "Unnamed: 2"}},
		{[]string{" trimmed "}, []string{"trimmed"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mangleHeaders(c.in), "input %v", c.in)
	}
}
