// Package pipeline runs one conversion: raw rows in, one committed Parquet
// file out.
//
// # Stages
//
//   - ingest: a reader assigns sequence numbers and batches rows, a pool of
//     workers normalizes them and checks decimal limits, and a single
//     collector feeds scale tracking, column statistics and the sorter
//   - plan: statistics and scales are frozen and the layout is decided
//   - write: the sorted stream is copied into the writer and committed
//
// Ingest statistics only ever merge commutatively and the sort order is
// total, so the output does not depend on how work was scheduled.
//
// # Error policy
//
// Schema and precision errors reject a single row. In lenient mode the row
// is dropped and counted; in strict mode the run aborts. Every other error
// aborts the run and leaves no file at the target.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/wealthpack/pkg/compression"
	"github.com/ajitpratap0/wealthpack/pkg/config"
	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/extsort"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/formats/columnar"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
	"github.com/ajitpratap0/wealthpack/pkg/metrics"
	"github.com/ajitpratap0/wealthpack/pkg/models"
	"github.com/ajitpratap0/wealthpack/pkg/observability"
	"github.com/ajitpratap0/wealthpack/pkg/schema"
	"github.com/ajitpratap0/wealthpack/pkg/source"
)

// DefaultMaxWarnings is how many rejected rows are logged at warn level
// before the rest drop to debug.
const DefaultMaxWarnings = 10

// Options carry the per-run settings that are not part of the config file.
type Options struct {
	// Table labels logs, metrics and the footer; defaults to the schema name
	Table string
	// Version is recorded in the output footer
	Version     string
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	MaxWarnings int
}

// Pipeline converts rows of one schema. A Pipeline may run several times
// but not concurrently.
type Pipeline struct {
	cfg      *config.Config
	schema   *models.Schema
	norm     *schema.Normalizer
	limits   fixedpoint.Limits
	spill    compression.Algorithm
	level    compression.Level
	decimals []int
	opts     Options
	log      *zap.Logger
	metrics  *metrics.Collector
}

// New validates cfg and prepares a pipeline for schema s.
func New(cfg *config.Config, s *models.Schema, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spill, err := compression.ParseAlgorithm(cfg.Sort.SpillCodec)
	if err != nil {
		return nil, err
	}
	level, err := compression.ParseLevel(cfg.Sort.SpillLevel)
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = s.Name()
	}
	if opts.MaxWarnings <= 0 {
		opts.MaxWarnings = DefaultMaxWarnings
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewCollector(opts.Table)
	}

	var decimals []int
	for i, f := range s.Fields() {
		if f.Kind == models.KindDecimal {
			decimals = append(decimals, i)
		}
	}

	return &Pipeline{
		cfg:      cfg,
		schema:   s,
		norm:     schema.NewNormalizer(s),
		limits:   cfg.Limits(),
		spill:    spill,
		level:    level,
		decimals: decimals,
		opts:     opts,
		log:      log,
		metrics:  m,
	}, nil
}

// Metrics returns the run's collector.
func (p *Pipeline) Metrics() *metrics.Collector { return p.metrics }

// Run converts everything src yields into target. On failure no file is
// left at target and the returned summary is nil.
func (p *Pipeline) Run(ctx context.Context, src source.Source, target string) (sum *Summary, err error) {
	ctx, log, sum := p.begin(ctx, target)
	ctx, span := observability.StartSpan(ctx, "convert",
		attribute.String("table", p.opts.Table), attribute.String("target", target))
	defer func() { observability.EndSpan(span, err) }()

	log.Info("starting conversion",
		zap.Int("workers", p.cfg.GetWorkers()),
		zap.Bool("strict", p.cfg.Strict))

	in, err := p.ingest(ctx, src, sum, log)
	if err != nil {
		log.Error("ingest failed", zap.Error(err))
		return nil, err
	}
	defer in.sorter.Close()

	plan, err := p.plan(ctx, in, sum)
	if err != nil {
		return nil, err
	}
	if err := p.write(ctx, in, plan, target, sum, log); err != nil {
		log.Error("write failed", zap.Error(err))
		return nil, err
	}
	if err := sum.CheckAccounting(); err != nil {
		return nil, err
	}

	sum.Stages = p.metrics.Stages()
	log.Info("conversion complete",
		zap.Int64("rows_in", sum.RowsIn),
		zap.Int64("rows_out", sum.RowsOut),
		zap.Int64("rows_dropped", sum.TotalDropped()),
		zap.Int("row_groups", sum.RowGroups),
		zap.Int64("bytes", sum.Bytes),
		zap.String("plan_fingerprint", sum.PlanFingerprint))
	return sum, nil
}

// Plan ingests src and returns the layout it would be written with,
// without writing anything. RowsOut counts the rows that would be written.
func (p *Pipeline) Plan(ctx context.Context, src source.Source) (sum *Summary, err error) {
	ctx, log, sum := p.begin(ctx, "")
	ctx, span := observability.StartSpan(ctx, "plan-only", attribute.String("table", p.opts.Table))
	defer func() { observability.EndSpan(span, err) }()

	in, err := p.ingest(ctx, src, sum, log)
	if err != nil {
		return nil, err
	}
	defer in.sorter.Close()

	if _, err := p.plan(ctx, in, sum); err != nil {
		return nil, err
	}
	sum.RowsOut = in.accepted
	if err := sum.CheckAccounting(); err != nil {
		return nil, err
	}
	sum.Stages = p.metrics.Stages()
	return sum, nil
}

func (p *Pipeline) begin(ctx context.Context, target string) (context.Context, *zap.Logger, *Summary) {
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.TableKey, p.opts.Table)
	return ctx, logger.FromContext(ctx, p.log), newSummary(runID, p.opts.Table, target)
}

// ingested is the state handed from ingest to the later stages.
type ingested struct {
	sorter   *extsort.Sorter
	stats    *layout.Stats
	scales   fixedpoint.Scales
	accepted int64
}

func (p *Pipeline) plan(ctx context.Context, in *ingested, sum *Summary) (*layout.ColumnPlan, error) {
	_, span := observability.StartSpan(ctx, "plan")
	done := p.metrics.StartStage("plan")
	defer done()

	plan, err := layout.Optimize(p.schema, in.stats, in.scales, p.cfg.LayoutOptions(p.opts.Table))
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}
	fp, err := plan.Fingerprint()
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}
	sum.Plan = plan
	sum.PlanFingerprint = fp
	span.SetAttributes(
		attribute.String("plan.fingerprint", fp),
		attribute.String("plan.codec", plan.Codec),
		attribute.Int("plan.row_group_size", plan.RowGroupSize))
	observability.EndSpan(span, nil)
	return plan, nil
}

func (p *Pipeline) write(ctx context.Context, in *ingested, plan *layout.ColumnPlan, target string, sum *Summary, log *zap.Logger) (err error) {
	ctx, span := observability.StartSpan(ctx, "write")
	defer func() { observability.EndSpan(span, err) }()
	done := p.metrics.StartStage("write")
	defer done()

	w, err := columnar.Open(target, p.schema, plan, columnar.Options{
		Overwrite: p.cfg.Overwrite,
		Version:   p.opts.Version,
		Workers:   p.cfg.GetWorkers(),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort()
		}
	}()

	it, err := in.sorter.Sort(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	st := in.sorter.Stats()
	sum.SpillRuns, sum.SpilledBytes = st.Runs, st.SpilledBytes
	p.metrics.SortSpill(st.Runs, st.SpilledBytes)

	if err := w.Copy(ctx, it); err != nil {
		return err
	}
	if w.Rows() != in.accepted {
		return errors.Newf(errors.ErrorTypeInternal, "sorter returned %d of %d records", w.Rows(), in.accepted)
	}

	res, err := w.Commit()
	if err != nil {
		return err
	}
	sum.RowsOut = res.Rows
	sum.RowGroups = res.RowGroups
	sum.Bytes = res.Bytes
	p.metrics.RowsOut(int(res.Rows))
	p.metrics.RowGroups(res.RowGroups)
	p.metrics.BytesWritten(res.Bytes)
	return nil
}

func (p *Pipeline) sortOptions(log *zap.Logger) extsort.Options {
	return extsort.Options{
		ChunkRows:     p.cfg.Sort.ChunkRows,
		TempDir:       p.cfg.Sort.TempDir,
		SpillCodec:    p.spill,
		SpillLevel:    p.level,
		MaxSpillBytes: p.cfg.Sort.MaxSpillBytes,
		Workers:       p.cfg.Sort.Workers,
		Logger:        log,
	}
}

// readErr keeps typed source errors and marks anything else internal.
func readErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, "read input")
}
