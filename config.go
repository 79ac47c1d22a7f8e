// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// BackupConfig holds the path markers used for pre-write snapshots.
type BackupConfig struct {
	MergeSuffix string `yaml:"merge_suffix"`
	YieldSuffix string `yaml:"yield_suffix"`
}

// MergeConfig holds merge tuning.
type MergeConfig struct {
	// Parallelism caps how many sheets merge concurrently; values below
	// two keep the sequential path.
	Parallelism int `yaml:"parallelism"`
}

// YieldConfig selects the sheet and the computed columns for yield
// application.
type YieldConfig struct {
	TargetSheet  string      `yaml:"target_sheet"`
	OutputSuffix string      `yaml:"output_suffix"`
	Columns      []YieldSpec `yaml:"columns"`
}

// AuditConfig holds settings for the post-merge audit engine.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MemoryLimit string `yaml:"memory_limit"`
	Threads     int    `yaml:"threads"`
}

// Config aggregates every tunable of the toolkit. Operations take a Config
// or the relevant section explicitly; there is no package-level mutable
// configuration.
type Config struct {
	Backup BackupConfig `yaml:"backup"`
	Merge  MergeConfig  `yaml:"merge"`
	Yield  YieldConfig  `yaml:"yield"`
	Audit  AuditConfig  `yaml:"audit"`
}

// DefaultConfig returns the stock configuration: merge backups written
// next to the original with a ".backup" marker, yield output written as a
// "_with_yields" sibling, and the two stock yield ratios computed over the
// hbm_test_yield sheet.
func DefaultConfig() *Config {
	return &Config{
		Backup: BackupConfig{
			MergeSuffix: ".backup",
			YieldSuffix: ".yield_backup",
		},
		Merge: MergeConfig{Parallelism: 1},
		Yield: YieldConfig{
			TargetSheet:  "hbm_test_yield",
			OutputSuffix: "_with_yields",
			Columns: []YieldSpec{
				{Column: "e_yield", Mode: YieldExpression, Expr: "qty_e_out / qty_e_in"},
				{Column: "asm_yield", Mode: YieldExpression, Expr: "qty_asm_out / qty_asm_in"},
			},
		},
		Audit: AuditConfig{MemoryLimit: "4GB", Threads: 4},
	}
}

// LoadConfig reads a YAML configuration file over the defaults, so a file
// only needs the keys it changes. Unknown keys are rejected. An empty file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
