// Package metrics tracks one wealthpack run with Prometheus metrics.
//
// Every run gets its own Collector backed by a private registry, so two
// conversions in the same process never share counters and tests can read
// values back with prometheus/testutil.
//
// # Basic Usage
//
//	m := metrics.NewCollector("assets")
//	m.RowsIn(1)
//	m.RowDropped("schema")
//	done := m.StartStage("sort")
//	// ...
//	done()
//	_ = m.WriteTextFile("run.prom")
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wealthpack"

// Collector holds the counters of one run. All methods are safe for
// concurrent use.
type Collector struct {
	table    string
	registry *prometheus.Registry

	rowsIn        prometheus.Counter
	rowsOut       prometheus.Counter
	rowsDropped   *prometheus.CounterVec
	fieldsDropped prometheus.Counter
	fieldsDefault prometheus.Counter
	spillRuns     prometheus.Gauge
	spilledBytes  prometheus.Gauge
	rowGroups     prometheus.Counter
	bytesWritten  prometheus.Gauge
	stageDuration *prometheus.HistogramVec

	mu     sync.Mutex
	stages map[string]time.Duration
}

// NewCollector creates a collector for the given table on a fresh registry.
func NewCollector(table string) *Collector {
	labels := prometheus.Labels{"table": table}
	c := &Collector{
		table:    table,
		registry: prometheus.NewRegistry(),
		stages:   make(map[string]time.Duration),
	}

	c.rowsIn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "rows_in_total",
		Help: "Rows read from the source", ConstLabels: labels,
	})
	c.rowsOut = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "rows_out_total",
		Help: "Rows written to the output file", ConstLabels: labels,
	})
	c.rowsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "rows_dropped_total",
		Help: "Rows rejected in lenient mode, by reason", ConstLabels: labels,
	}, []string{"reason"})
	c.fieldsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "fields_dropped_total",
		Help: "Unknown input fields discarded", ConstLabels: labels,
	})
	c.fieldsDefault = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "fields_defaulted_total",
		Help: "Optional fields absent from input and set to null", ConstLabels: labels,
	})
	c.spillRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "sort", Name: "spill_runs",
		Help: "Sorted runs spilled to disk", ConstLabels: labels,
	})
	c.spilledBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "sort", Name: "spilled_bytes",
		Help: "Compressed bytes spilled to disk", ConstLabels: labels,
	})
	c.rowGroups = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "writer", Name: "row_groups_total",
		Help: "Row groups flushed", ConstLabels: labels,
	})
	c.bytesWritten = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "writer", Name: "bytes",
		Help: "Size of the committed output file", ConstLabels: labels,
	})
	c.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "stage_duration_seconds",
		Help:        "Wall time of each pipeline stage",
		ConstLabels: labels,
		Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	c.registry.MustRegister(
		c.rowsIn, c.rowsOut, c.rowsDropped, c.fieldsDropped, c.fieldsDefault,
		c.spillRuns, c.spilledBytes, c.rowGroups, c.bytesWritten, c.stageDuration,
	)
	return c
}

// Registry exposes the run's registry for scraping or inspection.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Table returns the table label.
func (c *Collector) Table() string { return c.table }

func (c *Collector) RowsIn(n int)  { c.rowsIn.Add(float64(n)) }
func (c *Collector) RowsOut(n int) { c.rowsOut.Add(float64(n)) }

// RowDropped counts one rejected row under reason.
func (c *Collector) RowDropped(reason string) { c.rowsDropped.WithLabelValues(reason).Inc() }

// FieldSignals records the normalizer's per-row diagnostics.
func (c *Collector) FieldSignals(dropped, defaulted int) {
	if dropped > 0 {
		c.fieldsDropped.Add(float64(dropped))
	}
	if defaulted > 0 {
		c.fieldsDefault.Add(float64(defaulted))
	}
}

// SortSpill sets the final spill totals of the sorter.
func (c *Collector) SortSpill(runs int, bytes int64) {
	c.spillRuns.Set(float64(runs))
	c.spilledBytes.Set(float64(bytes))
}

// RowGroups counts flushed row groups.
func (c *Collector) RowGroups(n int) { c.rowGroups.Add(float64(n)) }

func (c *Collector) BytesWritten(n int64) { c.bytesWritten.Set(float64(n)) }

// StartStage starts timing a stage. The returned func stops the timer and
// records the observation; calling it more than once has no extra effect.
func (c *Collector) StartStage(stage string) func() time.Duration {
	start := time.Now()
	var once sync.Once
	var elapsed time.Duration
	return func() time.Duration {
		once.Do(func() {
			elapsed = time.Since(start)
			c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
			c.mu.Lock()
			c.stages[stage] += elapsed
			c.mu.Unlock()
		})
		return elapsed
	}
}

// Stages returns the accumulated wall time per stage.
func (c *Collector) Stages() map[string]time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Duration, len(c.stages))
	for k, v := range c.stages {
		out[k] = v
	}
	return out
}

// WriteTextFile dumps the registry in the Prometheus text format, for
// node_exporter's textfile collector.
func (c *Collector) WriteTextFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
