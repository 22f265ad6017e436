// Package subset copies the first rows of every table of a source database
// into a new SQLite file, keeping one exempt table whole.
package subset

import (
	"context"
	"errors"
	"fmt"
	"os"

	db "github.com/KazanKK/sqlsubset/database"

	"github.com/sirupsen/logrus"
)

var (
	ErrSampleTooLarge    = errors.New("cannot create subset larger than the number of entries of the original database")
	ErrNoEligibleTables  = errors.New("no tables to derive a row limit from")
	ErrInvalidSampleSize = errors.New("sample size must not be negative")
	ErrOutputMissing     = errors.New("failed to create subset sqlite file")
)

type Options struct {
	Input       string
	Output      string // absolute path of the subset file
	SampleSize  int64
	ExemptTable string
}

// Limit is the outcome of resolving the requested sample size against the
// row counts of the eligible tables
type Limit struct {
	Counts    map[string]int64
	Minimum   int64
	Effective int64
}

type TableResult struct {
	Name   string
	Rows   int64
	Exempt bool
}

type Result struct {
	Output string
	Limit  Limit
	Tables []TableResult
}

// ResolveLimit counts every table except exempt and checks requested against
// the smallest count. The same limit applies to all tables so the subset
// keeps uniform row counts.
func ResolveLimit(ctx context.Context, src db.SourceManager, tables []string, exempt string, requested int64) (Limit, error) {
	if requested < 0 {
		return Limit{}, fmt.Errorf("%w: got %d", ErrInvalidSampleSize, requested)
	}

	limit := Limit{Counts: make(map[string]int64), Minimum: -1}
	for _, table := range tables {
		if table == exempt {
			continue
		}
		count, err := src.CountRows(ctx, table)
		if err != nil {
			return Limit{}, fmt.Errorf("counting rows in %s: %w", table, err)
		}
		logrus.Debugf("Table %s has %d rows", table, count)
		limit.Counts[table] = count
		if limit.Minimum < 0 || count < limit.Minimum {
			limit.Minimum = count
		}
	}

	if len(limit.Counts) == 0 {
		return Limit{}, fmt.Errorf("%w: every table is exempt (%q) or the database is empty", ErrNoEligibleTables, exempt)
	}
	if requested > limit.Minimum {
		return Limit{}, fmt.Errorf("%w: requested %d rows, smallest table has %d", ErrSampleTooLarge, requested, limit.Minimum)
	}

	limit.Effective = min(requested, limit.Minimum)
	return limit, nil
}

// CopyTable writes table from src into dst. The exempt table is copied whole,
// any other table is cut to its first limit rows in storage order.
func CopyTable(ctx context.Context, src db.SourceManager, dst db.TableWriter, table string, limit int64, exempt bool) (int64, error) {
	columns, err := src.Columns(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	if exempt {
		limit = db.NoLimit
	}
	rows, err := src.SelectRows(ctx, table, limit)
	if err != nil {
		return 0, fmt.Errorf("selecting rows from %s: %w", table, err)
	}
	defer rows.Close()

	written, err := dst.WriteTable(ctx, db.Table{Name: table, Dialect: src.Dialect(), Columns: columns}, rows)
	if err != nil {
		return written, fmt.Errorf("writing %s: %w", table, err)
	}
	return written, nil
}

// VerifyOutput checks that path exists and is a regular file
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputMissing, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrOutputMissing, path)
	}
	return nil
}

// Run executes the whole pipeline: open the source, resolve the limit, copy
// every table into opts.Output and verify the file. The destination is not
// touched when the limit cannot be resolved.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logrus.Info("Connecting to database")
	src, err := db.Open(opts.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tables, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	logrus.Debugf("Found %d tables", len(tables))

	limit, err := ResolveLimit(ctx, src, tables, opts.ExemptTable, opts.SampleSize)
	if err != nil {
		return nil, err
	}

	logrus.Info("Creating new sqlite subset and populate with subset data")
	dst, err := db.CreateSQLite(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating subset file: %w", err)
	}
	defer dst.Close()

	result := &Result{Output: opts.Output, Limit: limit}
	for _, table := range tables {
		exempt := table == opts.ExemptTable
		written, err := CopyTable(ctx, src, dst, table, limit.Effective, exempt)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"table": table, "rows": written}).Info("Copied table")
		result.Tables = append(result.Tables, TableResult{Name: table, Rows: written, Exempt: exempt})
	}

	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("closing subset file: %w", err)
	}

	logrus.Info("Checking if subset sqlite file is generated ...")
	if err := VerifyOutput(opts.Output); err != nil {
		return nil, err
	}
	return result, nil
}
