// Package source feeds raw rows to the pipeline.
//
// Sources only split input into rows of named fields; typing is left to
// the schema normalizer. Three adapters exist: CSV files, JSON-lines
// streams and directories of scraped daily snapshots.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Source yields raw rows in input order. Next returns io.EOF after the
// last row. A Source is used by a single goroutine.
type Source interface {
	Next(ctx context.Context) (models.RawRow, error)
	Close() error
}

// Open picks an adapter from the path: a directory is read as snapshots,
// .csv as CSV and anything else as JSON lines.
func Open(path string, table models.Table, log *zap.Logger) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot open input").WithDetail("path", path)
	}
	if info.IsDir() {
		return NewSnapshots(path, table, log)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot open input").WithDetail("path", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSV(f)
	default:
		return NewJSONLines(f), nil
	}
}

// Rows is an in-memory source, mostly for tests.
type Rows struct {
	rows []models.RawRow
	pos  int
}

// FromRows wraps rows as a Source.
func FromRows(rows ...models.RawRow) *Rows { return &Rows{rows: rows} }

func (r *Rows) Next(ctx context.Context) (models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *Rows) Close() error { return nil }

// Drain reads a source to the end.
func Drain(ctx context.Context, src Source) ([]models.RawRow, error) {
	var out []models.RawRow
	for {
		row, err := src.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
}
