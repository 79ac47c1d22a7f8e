package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlkit/xlmerge"
	"github.com/xlkit/xlmerge/duckdb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose  bool
	cfgPath  string
	password string

	// Per-command flags
	output    string
	parallel  int
	withAudit bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "xlmerge",
	Short: "Merge, deduplicate and post-process manufacturing test workbooks",
	Long: `xlmerge reconciles periodic exports of manufacturing test data.

The merge command folds rows from a fresh export into an accumulated base
workbook, matching sheets by name and appending only rows never seen
before. The base file is backed up beside itself before anything is
written. The yield command derives yield ratio columns on the test
summary sheet, and audit cross-checks a merged workbook against its
source in DuckDB.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// mergeCmd merges an incoming workbook into a base workbook
var mergeCmd = &cobra.Command{
	Use:   "merge [base.xlsx] [incoming.xlsx]",
	Short: "Merge new rows from an incoming workbook into a base workbook",
	Long: `Merges rows from an incoming workbook into a base workbook and writes
the result.

Sheets present in both workbooks are merged: columns are reconciled to
their union and incoming rows are appended unless an identical row is
already present. Base-only sheets are copied through unchanged, and
incoming-only sheets are dropped. When the two workbooks share no sheet
names at all, the first sheet of each is merged instead and the result
is a single-sheet workbook.

The base file is backed up beside itself before any write. Without
--output the merged result overwrites the base file in place.

Example:
  xlmerge merge accumulated.xlsx fresh_export.xlsx
  xlmerge merge accumulated.xlsx fresh_export.xlsx -o merged.xlsx --audit`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

// yieldCmd applies configured yield columns to a workbook
var yieldCmd = &cobra.Command{
	Use:   "yield [file.xlsx]",
	Short: "Compute yield ratio columns on the test summary sheet",
	Long: `Computes the configured yield columns on the target sheet of a workbook.

Each column is computed from a constant, from another column, or from an
arithmetic expression over existing columns. Expression inputs that are
missing or non-numeric yield 0, as does division by zero. The result is
written as a sibling of the input (suffix from the config, by default
"_with_yields") unless --output says otherwise; the input file is backed
up first.

Example:
  xlmerge yield accumulated.xlsx
  xlmerge yield accumulated.xlsx --config yields.yaml -o report.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runYield,
}

// sheetsCmd lists or compares sheet catalogs
var sheetsCmd = &cobra.Command{
	Use:   "sheets [file.xlsx] [other.xlsx]",
	Short: "List sheet names, or compare the catalogs of two workbooks",
	Long: `With one file, lists its sheets with row and column counts. With two
files, shows which sheet names are shared and which are unique to each
side, using the same resolution the merge command uses.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSheets,
}

// auditCmd cross-checks a merged workbook against its source
var auditCmd = &cobra.Command{
	Use:   "audit [base.xlsx] [merged.xlsx]",
	Short: "Verify a merged workbook against its base in DuckDB",
	Long: `Loads both workbooks into an in-memory DuckDB database and cross-checks
them: every sheet of the merged workbook must still contain every row of
its base counterpart and must carry no duplicate rows beyond the ones
the base already had. Exits nonzero when a check fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runAudit,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password for protected workbooks")

	mergeCmd.Flags().StringVarP(&output, "output", "o", "", "Write the merged workbook here instead of overwriting the base file")
	mergeCmd.Flags().IntVar(&parallel, "parallel", 0, "Merge up to N sheets concurrently (overrides config)")
	mergeCmd.Flags().BoolVar(&withAudit, "audit", false, "Cross-check the merged workbook in DuckDB after writing")

	yieldCmd.Flags().StringVarP(&output, "output", "o", "", "Write the updated workbook here")

	// Add commands to root
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(yieldCmd)
	rootCmd.AddCommand(sheetsCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runMerge merges the incoming workbook into the base workbook
func runMerge(cmd *cobra.Command, args []string) error {
	basePath, incomingPath := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if parallel > 0 {
		cfg.Merge.Parallelism = parallel
	}

	base, err := xlmerge.ReadWorkbook(basePath, readOptions()...)
	if err != nil {
		return fmt.Errorf("read base workbook: %w", err)
	}
	incoming, err := xlmerge.ReadWorkbook(incomingPath, readOptions()...)
	if err != nil {
		return fmt.Errorf("read incoming workbook: %w", err)
	}

	merger := xlmerge.NewMerger(logger, xlmerge.WithParallelism(cfg.Merge.Parallelism))
	res, err := merger.MergeWorkbooks(base, incoming)
	if err != nil {
		return err
	}

	target := output
	if target == "" {
		target = basePath
	}
	persister := xlmerge.NewPersister(logger, xlmerge.WithBackupSuffix(cfg.Backup.MergeSuffix))
	if err := persister.Persist(basePath, res.Workbook, target); err != nil {
		return err
	}

	printMergeSummary(res, target)

	if withAudit || cfg.Audit.Enabled {
		return auditWorkbooks(cfg, base, res.Workbook)
	}
	return nil
}

// runYield applies the configured yield columns and writes the result
func runYield(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	wb, err := xlmerge.ReadWorkbook(path, readOptions()...)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}
	updated, err := xlmerge.ApplyWorkbookYields(wb, cfg.Yield)
	if err != nil {
		return err
	}

	target := output
	if target == "" {
		target = xlmerge.YieldOutputPath(path, cfg.Yield.OutputSuffix)
	}
	popts := []xlmerge.PersistOption{xlmerge.WithBackupSuffix(cfg.Backup.YieldSuffix)}
	for _, spec := range cfg.Yield.Columns {
		if spec.Format != "" {
			popts = append(popts, xlmerge.WithColumnFormat(cfg.Yield.TargetSheet, spec.Column, spec.Format))
		}
	}
	persister := xlmerge.NewPersister(logger, popts...)
	if err := persister.Persist(path, updated, target); err != nil {
		return err
	}

	fmt.Printf("applied %d yield columns to sheet %q; wrote %s\n",
		len(cfg.Yield.Columns), cfg.Yield.TargetSheet, target)
	return nil
}

// runSheets lists one catalog or compares two
func runSheets(cmd *cobra.Command, args []string) error {
	wb, err := xlmerge.ReadWorkbook(args[0], readOptions()...)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	if len(args) == 1 {
		for _, name := range wb.SheetNames() {
			t, _ := wb.Sheet(name)
			fmt.Printf("%s\t%d rows\t%d columns\n", name, len(t.Rows), len(t.Columns))
		}
		return nil
	}

	other, err := xlmerge.ReadWorkbook(args[1], readOptions()...)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	common, baseOnly, err := xlmerge.ResolveSheets(wb.SheetNames(), other.SheetNames())
	if err != nil && !errors.Is(err, xlmerge.ErrNoCommonSheets) {
		return err
	}

	inCommon := make(map[string]bool, len(common))
	for _, name := range common {
		inCommon[name] = true
	}
	var incomingOnly []string
	for _, name := range other.SheetNames() {
		if !inCommon[name] {
			incomingOnly = append(incomingOnly, name)
		}
	}

	fmt.Printf("common: %s\n", joinOrNone(common))
	fmt.Printf("only in %s: %s\n", args[0], joinOrNone(baseOnly))
	fmt.Printf("only in %s: %s\n", args[1], joinOrNone(incomingOnly))
	if errors.Is(err, xlmerge.ErrNoCommonSheets) {
		fmt.Println("no common sheet names; a merge would fall back to the first sheet of each")
	}
	return nil
}

// runAudit cross-checks two workbooks read from disk
func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	base, err := xlmerge.ReadWorkbook(args[0], readOptions()...)
	if err != nil {
		return fmt.Errorf("read base workbook: %w", err)
	}
	merged, err := xlmerge.ReadWorkbook(args[1], readOptions()...)
	if err != nil {
		return fmt.Errorf("read merged workbook: %w", err)
	}

	return auditWorkbooks(cfg, base, merged)
}

// auditWorkbooks runs the DuckDB cross-check and prints the report
func auditWorkbooks(cfg *xlmerge.Config, base, merged *xlmerge.Workbook) error {
	engine, err := duckdb.NewEngineWithConfig(&duckdb.Config{
		MemoryLimit: cfg.Audit.MemoryLimit,
		Threads:     cfg.Audit.Threads,
	})
	if err != nil {
		return fmt.Errorf("start audit engine: %w", err)
	}
	defer engine.Close()

	report, err := engine.AuditMerge(base, merged)
	if err != nil {
		return fmt.Errorf("audit merge: %w", err)
	}

	printAuditReport(report)
	if !report.Clean() {
		return fmt.Errorf("audit found inconsistencies in the merged workbook")
	}
	return nil
}

func printMergeSummary(res *xlmerge.MergeResult, target string) {
	if res.Fallback {
		fmt.Println("no common sheet names; merged the first sheet of each workbook")
	}
	for _, s := range res.Sheets {
		fmt.Printf("  %s: %d -> %d rows (+%d)\n", s.Sheet, s.OriginalRows, s.FinalRows, s.RowsAdded)
	}
	if len(res.DroppedIncomingSheets) > 0 {
		fmt.Printf("  dropped incoming-only sheets: %s\n", strings.Join(res.DroppedIncomingSheets, ", "))
	}
	fmt.Printf("%d rows added; wrote %s\n", res.TotalRowsAdded, target)
}

func printAuditReport(report *duckdb.AuditReport) {
	for _, s := range report.Sheets {
		fmt.Printf("  %s: %d rows, %d distinct", s.Sheet, s.MergedRows, s.DistinctRows)
		if s.DuplicateRows > 0 {
			fmt.Printf(", %d duplicate", s.DuplicateRows)
		}
		if s.BaseRows >= 0 {
			fmt.Printf(", base %d", s.BaseRows)
			if s.MissingBaseRows > 0 {
				fmt.Printf(" (%d missing)", s.MissingBaseRows)
			}
		}
		fmt.Println()
	}
	if report.Clean() {
		fmt.Println("audit: clean")
	}
}

func loadConfig() (*xlmerge.Config, error) {
	if cfgPath == "" {
		return xlmerge.DefaultConfig(), nil
	}
	return xlmerge.LoadConfig(cfgPath)
}

func readOptions() []xlmerge.ReadOption {
	if password == "" {
		return nil
	}
	return []xlmerge.ReadOption{xlmerge.WithPassword(password)}
}
