// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package duckdb embeds a DuckDB database for auditing merge output.
// Tables are loaded in their canonical textual form and verified with
// plain SQL: duplicate counting runs over the same canonical row keys the
// merge engine deduplicates with, so the audit agrees with the merge
// exactly.
package duckdb

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xlkit/xlmerge"
)

// Config holds engine settings.
type Config struct {
	// MemoryLimit caps DuckDB memory usage, e.g. "4GB".
	MemoryLimit string
	// Threads sets DuckDB's worker thread count; zero keeps the default.
	Threads int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{MemoryLimit: "4GB", Threads: 4}
}

// rowKeyColumn is the hidden column holding each row's canonical
// duplicate-detection key.
const rowKeyColumn = "_row_key"

type loadedColumn struct {
	logical  string
	physical string
}

type loadedTable struct {
	physical string
	columns  []loadedColumn
}

// Engine wraps an embedded in-memory DuckDB database holding audit copies
// of tables. It is safe for concurrent use. Close releases the database.
type Engine struct {
	db        *sql.DB
	mu        sync.RWMutex
	tables    map[string]loadedTable
	physicals map[string]string // physical table name -> logical owner
}

// NewEngine creates an Engine with the default configuration.
func NewEngine() (*Engine, error) {
	return NewEngineWithConfig(DefaultConfig())
}

// NewEngineWithConfig creates an Engine with explicit settings. A nil cfg
// falls back to DefaultConfig.
func NewEngineWithConfig(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if cfg.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads TO %d", cfg.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	return &Engine{
		db:        db,
		tables:    make(map[string]loadedTable),
		physicals: make(map[string]string),
	}, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// LoadTable copies t into the database under the logical name, replacing
// any previous load of that name. Cells are stored in canonical string
// form with nil kept as NULL, and a hidden column carries each row's
// canonical duplicate-detection key.
func (e *Engine) LoadTable(name string, t *xlmerge.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	physical := sanitizeTableName(name)
	for {
		owner, taken := e.physicals[physical]
		if !taken || owner == name {
			break
		}
		physical += "_"
	}

	used := map[string]struct{}{rowKeyColumn: {}}
	cols := make([]loadedColumn, len(t.Columns))
	defs := make([]string, 0, len(t.Columns)+1)
	for i, logical := range t.Columns {
		p := sanitizeColumnName(logical)
		for {
			if _, taken := used[p]; !taken {
				break
			}
			p += "_"
		}
		used[p] = struct{}{}
		cols[i] = loadedColumn{logical: logical, physical: p}
		defs = append(defs, fmt.Sprintf("%q VARCHAR", p))
	}
	defs = append(defs, fmt.Sprintf("%q VARCHAR", rowKeyColumn))

	create := fmt.Sprintf("CREATE OR REPLACE TABLE %q (%s)", physical, strings.Join(defs, ", "))
	if _, err := e.db.Exec(create); err != nil {
		return fmt.Errorf("create table for %q: %w", name, err)
	}

	if err := e.insertRows(physical, t); err != nil {
		return fmt.Errorf("load %q: %w", name, err)
	}

	e.tables[name] = loadedTable{physical: physical, columns: cols}
	e.physicals[physical] = name
	return nil
}

func (e *Engine) insertRows(physical string, t *xlmerge.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)+1), ",")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %q VALUES (%s)", physical, placeholders))
	if err != nil {
		tx.Rollback()
		return err
	}

	args := make([]any, len(t.Columns)+1)
	for r, row := range t.Rows {
		for i := range t.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if v == nil {
				args[i] = nil
			} else {
				args[i] = xlmerge.CanonicalString(v)
			}
		}
		args[len(t.Columns)] = t.RowKey(r)
		if _, err := stmt.Exec(args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("row %d: %w", r, err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

// ColumnSummary profiles one column of a loaded table.
type ColumnSummary struct {
	Name    string
	NonNull int64
}

// TableSummary profiles one loaded table.
type TableSummary struct {
	Name         string
	RowCount     int64
	DistinctRows int64
	Columns      []ColumnSummary
}

// Summarize profiles the named loaded table: total rows, distinct rows by
// canonical key, and non-null cell counts per column.
func (e *Engine) Summarize(name string) (*TableSummary, error) {
	e.mu.RLock()
	lt, ok := e.tables[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("table %q not loaded", name)
	}

	s := &TableSummary{Name: name}
	counts := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT %q) FROM %q", rowKeyColumn, lt.physical)
	if err := e.db.QueryRow(counts).Scan(&s.RowCount, &s.DistinctRows); err != nil {
		return nil, fmt.Errorf("summarize %q: %w", name, err)
	}
	for _, col := range lt.columns {
		var nonNull int64
		q := fmt.Sprintf("SELECT COUNT(%q) FROM %q", col.physical, lt.physical)
		if err := e.db.QueryRow(q).Scan(&nonNull); err != nil {
			return nil, fmt.Errorf("summarize %q column %q: %w", name, col.logical, err)
		}
		s.Columns = append(s.Columns, ColumnSummary{Name: col.logical, NonNull: nonNull})
	}
	return s, nil
}

// missingKeys counts canonical keys present in table from but absent from
// table in.
func (e *Engine) missingKeys(from, in string) (int64, error) {
	e.mu.RLock()
	f, okFrom := e.tables[from]
	t, okIn := e.tables[in]
	e.mu.RUnlock()
	if !okFrom || !okIn {
		return 0, fmt.Errorf("tables %q and %q must both be loaded", from, in)
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %q FROM %q EXCEPT SELECT %q FROM %q)",
		rowKeyColumn, f.physical, rowKeyColumn, t.physical)
	var n int64
	if err := e.db.QueryRow(q).Scan(&n); err != nil {
		return 0, fmt.Errorf("compare %q against %q: %w", from, in, err)
	}
	return n, nil
}

var identifierSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeTableName converts an arbitrary sheet or logical name into a
// safe SQL identifier.
func sanitizeTableName(name string) string {
	s := identifierSanitizer.ReplaceAllString(name, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "t_" + s
	}
	return s
}

// sanitizeColumnName converts a column name into a safe SQL identifier.
func sanitizeColumnName(name string) string {
	s := identifierSanitizer.ReplaceAllString(name, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "c_" + s
	}
	return s
}
