package columnar

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Options configure a Writer.
type Options struct {
	// Overwrite allows replacing an existing target at Commit.
	Overwrite bool
	// Version is recorded in the footer and the created_by field.
	Version string
	// Workers bounds parallel column building within a row group.
	Workers   int
	Allocator memory.Allocator
	Logger    *zap.Logger
}

// Result describes a committed file.
type Result struct {
	Path      string `json:"path"`
	Rows      int64  `json:"rows"`
	RowGroups int    `json:"row_groups"`
	Bytes     int64  `json:"bytes"`
}

// RecordIterator is the sorted input of Copy. It returns io.EOF when done.
type RecordIterator interface {
	Next() (*models.Record, error)
}

type writerState int

const (
	stateOpen writerState = iota
	stateCommitted
	stateAborted
)

// Writer owns one in-progress output file. It is not safe for concurrent
// use.
type Writer struct {
	target  string
	tmpPath string
	f       *os.File
	buf     *bufio.Writer
	sink    *countingWriter
	fw      *pqarrow.FileWriter

	schema    *models.Schema
	plan      *layout.ColumnPlan
	arrSchema *arrow.Schema
	codecs    []fixedpoint.Codec
	opts      Options
	mem       memory.Allocator
	log       *zap.Logger

	rows      int64
	rowGroups int
	state     writerState
}

// Open prepares a writer for target. The target itself is not touched
// until Commit; a pre-existing target is refused unless Overwrite is set.
func Open(target string, schema *models.Schema, plan *layout.ColumnPlan, opts Options) (*Writer, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	mem := opts.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("component", "columnar"), zap.String("target", target))

	if err := checkTarget(target, opts.Overwrite); err != nil {
		return nil, err
	}

	planJSON, err := plan.JSON()
	if err != nil {
		return nil, err
	}
	fingerprint, err := plan.Fingerprint()
	if err != nil {
		return nil, err
	}
	arrSchema, err := arrowSchema(schema, plan, map[string]string{
		MetaPlan:        string(planJSON),
		MetaTable:       plan.Table,
		MetaVersion:     opts.Version,
		MetaFingerprint: fingerprint,
	})
	if err != nil {
		return nil, err
	}
	props, err := writerProps(plan, "wealthpack "+opts.Version)
	if err != nil {
		return nil, err
	}

	codecs := make([]fixedpoint.Codec, len(plan.Columns))
	for i, col := range plan.Columns {
		codecs[i] = fixedpoint.Codec{Scale: col.Scale, Precision: col.Precision}
	}

	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return nil, writeErr(err, "create temporary file")
	}

	w := &Writer{
		target:    target,
		tmpPath:   f.Name(),
		f:         f,
		schema:    schema,
		plan:      plan,
		arrSchema: arrSchema,
		codecs:    codecs,
		opts:      opts,
		mem:       mem,
		log:       log,
	}
	w.buf = bufio.NewWriterSize(f, 1<<20)
	w.sink = &countingWriter{w: w.buf}

	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(mem))
	fw, err := pqarrow.NewFileWriter(arrSchema, w.sink, props, arrProps)
	if err != nil {
		w.cleanup()
		return nil, writeErr(err, "create parquet writer")
	}
	w.fw = fw
	log.Debug("opened output", zap.String("tmp", w.tmpPath), zap.String("codec", plan.Codec))
	return w, nil
}

func checkTarget(target string, overwrite bool) error {
	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return errors.New(errors.ErrorTypeWrite, "target is a directory").WithDetail("path", target)
	case err == nil && !overwrite:
		return errors.New(errors.ErrorTypeWrite, "target exists").WithDetail("path", target)
	case err != nil && !stderrors.Is(err, os.ErrNotExist):
		return writeErr(err, "stat target")
	}
	return nil
}

// WriteRowGroup encodes recs as one row group. Columns are built in
// parallel; the group is flushed before WriteRowGroup returns, so memory
// is bounded by one group. Any failure aborts the writer.
func (w *Writer) WriteRowGroup(ctx context.Context, recs []*models.Record) error {
	if w.state != stateOpen {
		return errors.New(errors.ErrorTypeInternal, "write on a closed writer")
	}
	if len(recs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		w.fail()
		return err
	}

	cols := make([]arrow.Array, len(w.plan.Columns))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	for i := range w.plan.Columns {
		g.Go(func() error {
			arr, err := w.buildColumn(i, recs)
			cols[i] = arr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		w.fail()
		return err
	}

	rec := array.NewRecord(w.arrSchema, cols, int64(len(recs)))
	defer rec.Release()
	if err := w.fw.Write(rec); err != nil {
		w.fail()
		return writeErr(err, "write row group")
	}
	w.rows += int64(len(recs))
	w.rowGroups++
	return nil
}

// Copy drains it into the file, one row group of plan.RowGroupSize rows
// at a time.
func (w *Writer) Copy(ctx context.Context, it RecordIterator) error {
	size := max(w.plan.RowGroupSize, 1)
	batch := make([]*models.Record, 0, size)
	for {
		rec, err := it.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.fail()
			return err
		}
		batch = append(batch, rec)
		if len(batch) == size {
			if err := w.WriteRowGroup(ctx, batch); err != nil {
				return err
			}
			clear(batch)
			batch = batch[:0]
		}
	}
	return w.WriteRowGroup(ctx, batch)
}

// Commit writes the footer and atomically moves the file into place.
func (w *Writer) Commit() (Result, error) {
	if w.state != stateOpen {
		return Result{}, errors.New(errors.ErrorTypeInternal, "commit on a closed writer")
	}
	if err := w.fw.Close(); err != nil {
		w.fail()
		return Result{}, writeErr(err, "write footer")
	}
	if err := w.buf.Flush(); err != nil {
		w.fail()
		return Result{}, writeErr(err, "flush output")
	}
	if err := w.f.Sync(); err != nil {
		w.fail()
		return Result{}, writeErr(err, "sync output")
	}
	if err := w.f.Close(); err != nil {
		w.f = nil
		w.fail()
		return Result{}, writeErr(err, "close output")
	}
	w.f = nil
	if err := checkTarget(w.target, w.opts.Overwrite); err != nil {
		w.fail()
		return Result{}, err
	}
	if err := os.Rename(w.tmpPath, w.target); err != nil {
		w.fail()
		return Result{}, writeErr(err, "rename output")
	}
	w.state = stateCommitted
	syncDir(filepath.Dir(w.target))

	res := Result{Path: w.target, Rows: w.rows, RowGroups: w.rowGroups, Bytes: w.sink.n}
	w.log.Info("committed output",
		zap.Int64("rows", res.Rows),
		zap.Int("row_groups", res.RowGroups),
		zap.Int64("bytes", res.Bytes))
	return res, nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.state != stateOpen {
		return nil
	}
	w.fail()
	return nil
}

// TempPath is the in-progress file, exposed for diagnostics.
func (w *Writer) TempPath() string { return w.tmpPath }

// Rows is the number of records written so far.
func (w *Writer) Rows() int64 { return w.rows }

func (w *Writer) fail() {
	if w.state != stateOpen {
		return
	}
	w.state = stateAborted
	w.cleanup()
	w.log.Warn("aborted output", zap.String("tmp", w.tmpPath))
}

func (w *Writer) cleanup() {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	_ = os.Remove(w.tmpPath)
}

func (w *Writer) buildColumn(i int, recs []*models.Record) (arrow.Array, error) {
	col := w.plan.Columns[i]
	switch col.PhysicalType {
	case layout.PhysicalDecimal128:
		b := array.NewDecimal128Builder(w.mem, w.arrSchema.Field(i).Type.(*arrow.Decimal128Type))
		defer b.Release()
		b.Reserve(len(recs))
		codec := w.codecs[i]
		for _, r := range recs {
			v := r.Get(i)
			if v.IsNull() {
				b.AppendNull()
				continue
			}
			n, err := codec.Encode(v.Dec())
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypePrecision, "encode "+col.Name).WithDetail("seq", r.Seq)
			}
			b.Append(n)
		}
		return b.NewArray(), nil

	case layout.PhysicalInt64:
		b := array.NewInt64Builder(w.mem)
		defer b.Release()
		b.Reserve(len(recs))
		for _, r := range recs {
			v := r.Get(i)
			if v.IsNull() {
				b.AppendNull()
				continue
			}
			b.Append(v.Int())
		}
		return b.NewArray(), nil

	default:
		b := array.NewStringBuilder(w.mem)
		defer b.Release()
		b.Reserve(len(recs))
		for _, r := range recs {
			v := r.Get(i)
			if v.IsNull() {
				b.AppendNull()
				continue
			}
			b.Append(v.Str())
		}
		return b.NewArray(), nil
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// syncDir persists the rename. Not every platform can fsync a directory,
// so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func writeErr(err error, msg string) error {
	return errors.Wrap(err, errors.ErrorTypeWrite, msg)
}
