package pipeline

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/extsort"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
	"github.com/ajitpratap0/wealthpack/pkg/models"
	"github.com/ajitpratap0/wealthpack/pkg/observability"
	"github.com/ajitpratap0/wealthpack/pkg/source"
)

// batch is a run of consecutive raw rows; row i has sequence first+i.
type batch struct {
	first uint64
	rows  []models.RawRow
}

type rejection struct {
	seq uint64
	err error
}

// normalized is one batch after the worker stage.
type normalized struct {
	recs      []*models.Record
	rejects   []rejection
	dropped   []string
	defaulted []string
}

func (p *Pipeline) ingest(ctx context.Context, src source.Source, sum *Summary, log *zap.Logger) (*ingested, error) {
	ctx, span := observability.StartSpan(ctx, "ingest")
	done := p.metrics.StartStage("ingest")
	defer done()

	sorter := extsort.New(p.schema, p.sortOptions(log))
	tracker := fixedpoint.NewTracker(p.schema.Len(), p.limits)
	stats := layout.NewCollector(p.schema, p.cfg.DistinctCap)

	workers := p.cfg.GetWorkers()
	batches := make(chan batch, workers)
	results := make(chan normalized, workers)

	var rowsIn, accepted int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.read(gctx, src, batches, &rowsIn)
	})
	g.Go(func() error {
		defer close(results)
		wg, wctx := errgroup.WithContext(gctx)
		for i := 0; i < workers; i++ {
			wg.Go(func() error { return p.normalizeWorker(wctx, batches, results) })
		}
		return wg.Wait()
	})
	g.Go(func() error {
		n, err := p.collect(gctx, results, sorter, tracker, stats, sum, log)
		accepted = n
		return err
	})

	if err := g.Wait(); err != nil {
		_ = sorter.Close()
		observability.EndSpan(span, err)
		return nil, err
	}

	sum.RowsIn = rowsIn
	p.metrics.RowsIn(int(rowsIn))
	span.SetAttributes(
		attribute.Int64("rows.in", rowsIn),
		attribute.Int64("rows.accepted", accepted),
		attribute.Int64("rows.dropped", sum.TotalDropped()))
	observability.EndSpan(span, nil)

	return &ingested{
		sorter:   sorter,
		stats:    stats.Freeze(),
		scales:   tracker.Freeze(),
		accepted: accepted,
	}, nil
}

// read batches src and stamps sequence numbers. It is the only goroutine
// touching src.
func (p *Pipeline) read(ctx context.Context, src source.Source, out chan<- batch, rowsIn *int64) error {
	defer close(out)
	var seq uint64
	defer func() { *rowsIn = int64(seq) }()

	for {
		b := batch{first: seq, rows: make([]models.RawRow, 0, p.cfg.BatchSize)}
		eof := false
		for len(b.rows) < p.cfg.BatchSize {
			row, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return readErr(err)
			}
			b.rows = append(b.rows, row)
			seq++
		}
		if len(b.rows) > 0 {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if eof {
			return nil
		}
	}
}

func (p *Pipeline) normalizeWorker(ctx context.Context, in <-chan batch, out chan<- normalized) error {
	for {
		select {
		case b, ok := <-in:
			if !ok {
				return nil
			}
			res, err := p.normalizeBatch(b)
			if err != nil {
				return err
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// normalizeBatch types every row of b. Record-level failures are collected
// unless the run is strict; anything else is returned.
func (p *Pipeline) normalizeBatch(b batch) (normalized, error) {
	res := normalized{recs: make([]*models.Record, 0, len(b.rows))}
	for i, row := range b.rows {
		seq := b.first + uint64(i)
		rec, diag, err := p.norm.Normalize(seq, row)
		if err == nil {
			err = p.checkDecimals(rec)
		}
		if err != nil {
			if p.cfg.Strict || !errors.IsRecordLevel(err) {
				return normalized{}, err
			}
			res.rejects = append(res.rejects, rejection{seq: seq, err: err})
			continue
		}
		res.dropped = append(res.dropped, diag.Dropped...)
		res.defaulted = append(res.defaulted, diag.Defaulted...)
		res.recs = append(res.recs, rec)
	}
	return res, nil
}

// checkDecimals applies the per-value limits off the collector goroutine
// so the collector's tracker never sees a value it would reject.
func (p *Pipeline) checkDecimals(rec *models.Record) error {
	for _, idx := range p.decimals {
		v := rec.Values[idx]
		if v.IsNull() {
			continue
		}
		if err := p.limits.Check(v.Dec()); err != nil {
			return errors.Wrap(err, errors.ErrorTypePrecision, "decimal out of range").
				WithDetail("seq", rec.Seq).
				WithDetail("field", p.schema.Field(idx).Name)
		}
	}
	return nil
}

// collect is the single consumer of worker output. It owns the tracker,
// the statistics collector and the sorter.
func (p *Pipeline) collect(ctx context.Context, in <-chan normalized, sorter *extsort.Sorter,
	tracker *fixedpoint.Tracker, stats *layout.Collector, sum *Summary, log *zap.Logger) (int64, error) {
	var accepted int64
	warned := 0
	for res := range in {
		for _, r := range res.rejects {
			reason := string(errors.TypeOf(r.err))
			sum.Dropped[reason]++
			p.metrics.RowDropped(reason)
			fields := []zap.Field{zap.Uint64("seq", r.seq), zap.String("reason", reason), zap.Error(r.err)}
			if warned < p.opts.MaxWarnings {
				warned++
				log.Warn("dropping row", fields...)
			} else {
				log.Debug("dropping row", fields...)
			}
		}
		for _, f := range res.dropped {
			sum.DroppedFields[f]++
		}
		for _, f := range res.defaulted {
			sum.DefaultedFields[f]++
		}
		p.metrics.FieldSignals(len(res.dropped), len(res.defaulted))

		for _, rec := range res.recs {
			for _, idx := range p.decimals {
				if v := rec.Values[idx]; !v.IsNull() {
					if err := tracker.Observe(idx, v.Dec()); err != nil {
						return accepted, err
					}
				}
			}
			stats.Observe(rec)
			if err := sorter.Add(ctx, rec); err != nil {
				return accepted, err
			}
			accepted++
		}
	}
	return accepted, ctx.Err()
}
