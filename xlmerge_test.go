package xlmerge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMergeFixtures(t *testing.T, dir string) (string, string) {
	t.Helper()
	basePath := filepath.Join(dir, "accumulated.xlsx")
	incomingPath := filepath.Join(dir, "fresh.xlsx")

	writeFixture(t, basePath, []fixtureSheet{
		{
			name: "hbm_test_yield",
			rows: [][]any{
				{"lot", "qty_in", "qty_out"},
				{"L001", 100, 97},
				{"L002", 80, 75},
			},
		},
		{
			name: "notes",
			rows: [][]any{{"author", "text"}, {"kim", "retest lot 2"}},
		},
	})
	writeFixture(t, incomingPath, []fixtureSheet{
		{
			name: "hbm_test_yield",
			rows: [][]any{
				{"lot", "qty_in", "qty_out"},
				{"L002", 80, 75},
				{"L003", 60, 58},
			},
		},
		{
			name: "scratch",
			rows: [][]any{{"x"}, {"y"}},
		},
	})
	return basePath, incomingPath
}

func TestMergeFilesInPlace(t *testing.T) {
	dir := t.TempDir()
	basePath, incomingPath := writeMergeFixtures(t, dir)

	res, err := MergeFiles(nil, nil, basePath, incomingPath, "")
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalRowsAdded)
	assert.Equal(t, []string{"scratch"}, res.DroppedIncomingSheets)
	assert.False(t, res.Fallback)

	// The overwritten base now holds the merged rows plus the untouched
	// base-only sheet.
	merged, err := ReadWorkbook(basePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"hbm_test_yield", "notes"}, merged.SheetNames())

	lots, _ := merged.Sheet("hbm_test_yield")
	require.Len(t, lots.Rows, 3)
	assert.Equal(t, "L003", lots.Cell(2, "lot"))
	assert.Equal(t, int64(58), lots.Cell(2, "qty_out"))

	notes, _ := merged.Sheet("notes")
	assert.Equal(t, "retest lot 2", notes.Cell(0, "text"))

	// The pre-merge content survives in the backup.
	backup, err := ReadWorkbook(BackupPath(basePath, ".backup"))
	require.NoError(t, err)
	backupLots, _ := backup.Sheet("hbm_test_yield")
	assert.Len(t, backupLots.Rows, 2)
}

func TestMergeFilesIdempotent(t *testing.T) {
	dir := t.TempDir()
	basePath, incomingPath := writeMergeFixtures(t, dir)

	first, err := MergeFiles(nil, nil, basePath, incomingPath, "")
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalRowsAdded)

	// Re-merging the same export contributes nothing.
	second, err := MergeFiles(nil, nil, basePath, incomingPath, "")
	require.NoError(t, err)
	assert.Zero(t, second.TotalRowsAdded)

	merged, err := ReadWorkbook(basePath)
	require.NoError(t, err)
	lots, _ := merged.Sheet("hbm_test_yield")
	assert.Len(t, lots.Rows, 3)
}

func TestMergeFilesToSeparateTarget(t *testing.T) {
	dir := t.TempDir()
	basePath, incomingPath := writeMergeFixtures(t, dir)
	target := filepath.Join(dir, "merged.xlsx")

	res, err := MergeFiles(nil, nil, basePath, incomingPath, target)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRowsAdded)

	// Base keeps its original two rows; the target holds three.
	base, err := ReadWorkbook(basePath)
	require.NoError(t, err)
	baseLots, _ := base.Sheet("hbm_test_yield")
	assert.Len(t, baseLots.Rows, 2)

	merged, err := ReadWorkbook(target)
	require.NoError(t, err)
	lots, _ := merged.Sheet("hbm_test_yield")
	assert.Len(t, lots.Rows, 3)
}

func TestMergeFilesCustomConfig(t *testing.T) {
	dir := t.TempDir()
	basePath, incomingPath := writeMergeFixtures(t, dir)

	cfg := DefaultConfig()
	cfg.Backup.MergeSuffix = ".orig"
	cfg.Merge.Parallelism = 4

	_, err := MergeFiles(nil, cfg, basePath, incomingPath, "")
	require.NoError(t, err)

	assert.FileExists(t, BackupPath(basePath, ".orig"))
}

func TestMergeFilesUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	_, incomingPath := writeMergeFixtures(t, dir)

	_, err := MergeFiles(nil, nil, filepath.Join(dir, "absent.xlsx"), incomingPath, "")
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}
