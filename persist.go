// Copyright 2026 The xlmerge Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlmerge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"
	"go.uber.org/zap"
)

// Persister writes merged workbooks to disk with backup-before-write
// semantics: the original file is snapshotted to a sibling backup path
// before the target is touched, and the target itself is produced by
// writing a temporary artifact and renaming it into place, so an
// interrupted run never leaves a half-written workbook behind.
type Persister struct {
	log          *zap.Logger
	backupSuffix string
	formats      map[string]map[string]string // sheet -> column -> number format
}

// PersistOption configures a Persister.
type PersistOption func(*Persister)

// WithBackupSuffix sets the marker inserted before the file extension of
// the backup path. The default is ".backup".
func WithBackupSuffix(suffix string) PersistOption {
	return func(p *Persister) { p.backupSuffix = suffix }
}

// WithColumnFormat applies a number format (for example "0.00%") to every
// data cell of the named column when writing. Format strings are validated
// before anything is written to disk.
func WithColumnFormat(sheet, column, format string) PersistOption {
	return func(p *Persister) {
		if p.formats[sheet] == nil {
			p.formats[sheet] = make(map[string]string)
		}
		p.formats[sheet][column] = format
	}
}

// NewPersister returns a Persister that logs through log. A nil log
// disables logging.
func NewPersister(log *zap.Logger, opts ...PersistOption) *Persister {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Persister{
		log:          log,
		backupSuffix: ".backup",
		formats:      make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BackupPath returns the deterministic backup location for path: the same
// directory and extension with the marker inserted before the extension,
// e.g. "data.xlsx" becomes "data.backup.xlsx" for marker ".backup".
func BackupPath(path, marker string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + marker + ext
}

// Persist writes workbook to targetPath after snapshotting the file at
// originalPath to its backup location. The backup is a byte copy, so
// reading it back reproduces every original sheet exactly. Backup failure
// aborts the whole operation before the target is touched; write failure
// leaves the backup in place for manual recovery. targetPath may equal
// originalPath, in which case the backup is what makes the overwrite safe.
func (p *Persister) Persist(originalPath string, workbook *Workbook, targetPath string) error {
	if workbook == nil || workbook.Len() == 0 {
		return fmt.Errorf("persist: %w", ErrEmptyWorkbook)
	}
	if err := p.validateFormats(); err != nil {
		return err
	}

	backupPath := BackupPath(originalPath, p.backupSuffix)
	if err := copyFile(originalPath, backupPath); err != nil {
		return &BackupError{Path: backupPath, Err: err}
	}
	p.log.Info("backup written", zap.String("path", backupPath))

	if err := p.writeWorkbook(workbook, targetPath); err != nil {
		return &WriteError{Path: targetPath, Err: err}
	}
	p.log.Info("workbook written",
		zap.String("path", targetPath),
		zap.Int("sheets", workbook.Len()))
	return nil
}

func (p *Persister) validateFormats() error {
	for sheet, cols := range p.formats {
		for column, format := range cols {
			if format == "" {
				return fmt.Errorf("column format for %s!%s: %w", sheet, column, ErrInvalidNumberFormat)
			}
			parser := nfp.NumberFormatParser()
			if sections := parser.Parse(format); len(sections) == 0 {
				return fmt.Errorf("column format %q for %s!%s: %w", format, sheet, column, ErrInvalidNumberFormat)
			}
		}
	}
	return nil
}

func (p *Persister) writeWorkbook(workbook *Workbook, targetPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range workbook.SheetNames() {
		if i == 0 {
			if current := f.GetSheetName(0); current != name {
				if err := f.SetSheetName(current, name); err != nil {
					return fmt.Errorf("sheet %q: %w", name, err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		table, _ := workbook.Sheet(name)
		if err := p.writeSheet(f, name, table); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}

	tmp := tempArtifactPath(targetPath)
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, targetPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (p *Persister) writeSheet(f *excelize.File, sheet string, t *Table) error {
	for c, name := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c := range t.Columns {
			v := cellAt(row, c)
			if v == nil {
				continue
			}
			// Textual booleans survive a write-read cycle; native boolean
			// cells read back as raw numbers.
			if b, ok := v.(bool); ok {
				if b {
					v = "TRUE"
				} else {
					v = "FALSE"
				}
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return p.applyFormats(f, sheet, t)
}

func (p *Persister) applyFormats(f *excelize.File, sheet string, t *Table) error {
	cols := p.formats[sheet]
	if len(cols) == 0 || len(t.Rows) == 0 {
		return nil
	}
	for column, format := range cols {
		ci := t.ColumnIndex(column)
		if ci < 0 {
			continue
		}
		styleID, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return err
		}
		top, err := excelize.CoordinatesToCellName(ci+1, 2)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(ci+1, len(t.Rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, top, bottom, styleID); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies src to dst atomically: the bytes land in a temporary
// file in dst's directory which is then renamed over dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := tempArtifactPath(dst)
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err = out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// tempArtifactPath returns a unique temporary path in the same directory
// as path, so the final rename never crosses filesystems.
func tempArtifactPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.New().String()))
}
