package extsort

import (
	"bufio"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"syscall"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/wealthpack/pkg/compression"
	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Options tune the sorter's memory bound and spill behavior.
type Options struct {
	// ChunkRows is the number of records sorted in memory before a spill.
	ChunkRows int
	// TempDir holds spill runs; empty means os.TempDir().
	TempDir string
	// SpillCodec compresses run files.
	SpillCodec compression.Algorithm
	// SpillLevel is the codec effort; zero means compression.Fastest.
	SpillLevel compression.Level
	// MaxSpillBytes caps the total size of spill runs; 0 disables the cap.
	MaxSpillBytes int64
	// Workers is how many full chunks are sorted and spilled concurrently.
	Workers int
	Logger  *zap.Logger
}

// DefaultOptions returns options suitable for a few hundred MB of heap.
func DefaultOptions() Options {
	return Options{
		ChunkRows:  250_000,
		SpillCodec: compression.LZ4,
		SpillLevel: compression.Fastest,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// Stats describes the spill activity of a sort.
type Stats struct {
	Records      int64
	Runs         int
	SpilledBytes int64
}

// diskUsage is swapped in tests.
var diskUsage = func(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

type entry struct {
	key SortKey
	rec *models.Record
}

// Sorter accumulates records and produces them in SortKey order. Memory
// holds at most Workers full chunks plus the chunk being filled. A Sorter
// is used by a single goroutine; the parallelism is internal.
type Sorter struct {
	roles   roles
	opts    Options
	log     *zap.Logger
	chunk   []entry
	pending [][]entry
	dir     string
	runs    []string
	stats   Stats
	sorted  bool
}

// New creates a sorter for records of schema s.
func New(s *models.Schema, opts Options) *Sorter {
	def := DefaultOptions()
	if opts.ChunkRows <= 0 {
		opts.ChunkRows = def.ChunkRows
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.SpillCodec == "" {
		opts.SpillCodec = def.SpillCodec
	}
	if opts.SpillLevel == 0 {
		opts.SpillLevel = def.SpillLevel
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Sorter{
		roles: rolesOf(s),
		opts:  opts,
		log:   log.With(zap.String("component", "extsort")),
		chunk: make([]entry, 0, opts.ChunkRows),
	}
}

// Add buffers one record, spilling when enough full chunks are pending.
func (s *Sorter) Add(ctx context.Context, rec *models.Record) error {
	if s.sorted {
		return errors.New(errors.ErrorTypeInternal, "add after sort")
	}
	s.chunk = append(s.chunk, entry{key: s.roles.key(rec), rec: rec})
	s.stats.Records++
	if len(s.chunk) < s.opts.ChunkRows {
		return nil
	}
	s.pending = append(s.pending, s.chunk)
	s.chunk = make([]entry, 0, s.opts.ChunkRows)
	if len(s.pending) < s.opts.Workers {
		return nil
	}
	return s.spillPending(ctx)
}

// Stats reports spill activity so far.
func (s *Sorter) Stats() Stats { return s.stats }

// Sort ends input and returns an iterator over all records in key order.
// When nothing was spilled the iterator is purely in memory.
func (s *Sorter) Sort(ctx context.Context) (Iterator, error) {
	if s.sorted {
		return nil, errors.New(errors.ErrorTypeInternal, "sort called twice")
	}
	s.sorted = true

	if len(s.runs) == 0 && len(s.pending) == 0 {
		sortEntries(s.chunk)
		it := &sliceIterator{entries: s.chunk}
		s.chunk = nil
		return it, nil
	}

	if err := s.spillPending(ctx); err != nil {
		return nil, err
	}
	sortEntries(s.chunk)

	sources := make([]cursorSource, 0, len(s.runs)+1)
	for _, path := range s.runs {
		r, err := openRun(path, s.opts.SpillCodec)
		if err != nil {
			for _, src := range sources {
				_ = src.close()
			}
			return nil, err
		}
		sources = append(sources, r)
	}
	if len(s.chunk) > 0 {
		sources = append(sources, &sliceIterator{entries: s.chunk})
	}
	s.chunk = nil

	s.log.Debug("merging runs", zap.Int("runs", len(s.runs)), zap.Int64("records", s.stats.Records))
	return newMerger(s.roles, sources)
}

// Close removes every spill run. It is safe to call more than once.
func (s *Sorter) Close() error {
	s.chunk, s.pending = nil, nil
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

func sortEntries(es []entry) {
	slices.SortFunc(es, func(a, b entry) int { return Compare(a.key, b.key) })
}

func (s *Sorter) spillPending(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	var estimate int64
	for _, chunk := range s.pending {
		estimate += estimateBytes(chunk)
	}
	if err := s.checkSpace(estimate); err != nil {
		return err
	}

	base := len(s.runs)
	paths := make([]string, len(s.pending))
	sizes := make([]int64, len(s.pending))
	g, _ := errgroup.WithContext(ctx)
	for i, chunk := range s.pending {
		paths[i] = filepath.Join(s.dir, "run-"+strconv.Itoa(base+i)+".cbor")
		g.Go(func() error {
			sortEntries(chunk)
			n, err := writeRun(paths[i], chunk, s.opts.SpillCodec, s.opts.SpillLevel)
			sizes[i] = n
			return err
		})
	}
	err := g.Wait()
	// Record every path so Close removes partial runs too.
	s.runs = append(s.runs, paths...)
	s.pending = nil
	if err != nil {
		return err
	}

	for _, n := range sizes {
		s.stats.SpilledBytes += n
	}
	s.stats.Runs = len(s.runs)
	s.log.Debug("spilled runs",
		zap.Int("runs", len(paths)),
		zap.Int64("spilled_bytes", s.stats.SpilledBytes))
	return nil
}

func (s *Sorter) ensureDir() error {
	if s.dir != "" {
		return nil
	}
	dir, err := os.MkdirTemp(s.opts.TempDir, "wealthpack-sort-")
	if err != nil {
		return spillErr(err, "create spill directory")
	}
	s.dir = dir
	return nil
}

// checkSpace refuses a spill that would exceed the configured cap or the
// free space on the spill volume. The estimate is uncompressed, so it is
// an upper bound for every codec but none.
func (s *Sorter) checkSpace(estimate int64) error {
	if limit := s.opts.MaxSpillBytes; limit > 0 && s.stats.SpilledBytes+estimate > limit {
		return errors.Newf(errors.ErrorTypeResourceExhausted,
			"spill would reach %d bytes, limit is %d", s.stats.SpilledBytes+estimate, limit).
			WithDetail("spilled_bytes", s.stats.SpilledBytes)
	}
	free, err := diskUsage(s.dir)
	if err != nil {
		// An unreadable volume is caught by the write itself.
		s.log.Warn("cannot read spill volume usage", zap.Error(err))
		return nil
	}
	if uint64(estimate) > free {
		return errors.Newf(errors.ErrorTypeResourceExhausted,
			"spill needs about %d bytes, %d free in %s", estimate, free, s.opts.TempDir).
			WithDetail("free_bytes", free)
	}
	return nil
}

func estimateBytes(chunk []entry) int64 {
	var n int64
	for _, e := range chunk {
		n += 8
		for _, v := range e.rec.Values {
			n += 10 + int64(len(v.Str()))
			if v.Kind() == models.KindDecimal {
				n += 24
			}
		}
	}
	return n
}

func writeRun(path string, chunk []entry, codec compression.Algorithm, level compression.Level) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, spillErr(err, "create spill run")
	}
	bw := bufio.NewWriterSize(f, 256<<10)
	cw, err := compression.NewWriter(bw, codec, level)
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	enc := newFrameEncoder(cw)
	for _, e := range chunk {
		if err := enc.encode(e.rec); err != nil {
			_ = f.Close()
			return 0, spillErr(err, "write spill run")
		}
	}
	if err := cw.Close(); err != nil {
		_ = f.Close()
		return 0, spillErr(err, "write spill run")
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return 0, spillErr(err, "write spill run")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, spillErr(err, "stat spill run")
	}
	if err := f.Close(); err != nil {
		return 0, spillErr(err, "close spill run")
	}
	return info.Size(), nil
}

// spillErr classifies a spill I/O failure. Running out of space is a
// resource error and is never retried.
func spillErr(err error, msg string) error {
	if stderrors.Is(err, syscall.ENOSPC) {
		return errors.Wrap(err, errors.ErrorTypeResourceExhausted, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, msg)
}
