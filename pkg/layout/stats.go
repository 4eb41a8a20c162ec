package layout

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// DefaultDistinctCap bounds the exact distinct-value set kept per column.
const DefaultDistinctCap = 1 << 20

// ColumnStats are the frozen statistics of one column.
type ColumnStats struct {
	Name  string      `json:"name"`
	Kind  models.Kind `json:"kind"`
	Nulls int64       `json:"nulls"`
	// Distinct is exact unless Saturated, in which case it is a lower bound.
	Distinct  int64 `json:"distinct"`
	Saturated bool  `json:"saturated,omitempty"`
	// MaxScale and MaxIntDigits cover decimal columns only.
	MaxScale     int32 `json:"max_scale,omitempty"`
	MaxIntDigits int32 `json:"max_int_digits,omitempty"`
}

// NonNull is the number of rows holding a value.
func (c ColumnStats) NonNull(rows int64) int64 { return rows - c.Nulls }

// Stats are read-only once frozen.
type Stats struct {
	Rows    int64         `json:"rows"`
	Columns []ColumnStats `json:"columns"`
}

type columnAcc struct {
	nulls        int64
	seen         map[uint64]struct{}
	saturated    bool
	maxScale     int32
	maxIntDigits int32
}

// Collector gathers column statistics in a single pass. It is not safe for
// concurrent use; parallel producers keep one each and Merge them.
type Collector struct {
	schema      *models.Schema
	distinctCap int
	rows        int64
	cols        []columnAcc
}

// NewCollector creates a collector for schema. distinctCap <= 0 selects
// DefaultDistinctCap.
func NewCollector(schema *models.Schema, distinctCap int) *Collector {
	if distinctCap <= 0 {
		distinctCap = DefaultDistinctCap
	}
	cols := make([]columnAcc, schema.Len())
	for i := range cols {
		cols[i].seen = make(map[uint64]struct{})
	}
	return &Collector{schema: schema, distinctCap: distinctCap, cols: cols}
}

// Observe folds one record into the statistics.
func (c *Collector) Observe(rec *models.Record) {
	c.rows++
	for i := range c.cols {
		v := rec.Get(i)
		acc := &c.cols[i]
		if v.IsNull() {
			acc.nulls++
			continue
		}
		if v.Kind() == models.KindDecimal {
			d := v.Dec()
			if s := fixedpoint.ScaleOf(d); s > acc.maxScale {
				acc.maxScale = s
			}
			if n := fixedpoint.IntDigitsOf(d); n > acc.maxIntDigits {
				acc.maxIntDigits = n
			}
		}
		if !acc.saturated {
			acc.seen[fingerprint(v)] = struct{}{}
			c.checkCap(acc)
		}
	}
}

// Merge folds another collector into c. Merging is commutative.
func (c *Collector) Merge(o *Collector) {
	c.rows += o.rows
	for i := range c.cols {
		if i >= len(o.cols) {
			break
		}
		acc, other := &c.cols[i], &o.cols[i]
		acc.nulls += other.nulls
		if other.maxScale > acc.maxScale {
			acc.maxScale = other.maxScale
		}
		if other.maxIntDigits > acc.maxIntDigits {
			acc.maxIntDigits = other.maxIntDigits
		}
		if acc.saturated {
			continue
		}
		if other.saturated {
			acc.saturated, acc.seen = true, nil
			continue
		}
		for h := range other.seen {
			acc.seen[h] = struct{}{}
		}
		c.checkCap(acc)
	}
}

func (c *Collector) checkCap(acc *columnAcc) {
	if len(acc.seen) > c.distinctCap {
		acc.saturated, acc.seen = true, nil
	}
}

// Freeze snapshots the statistics.
func (c *Collector) Freeze() *Stats {
	st := &Stats{Rows: c.rows, Columns: make([]ColumnStats, len(c.cols))}
	for i, acc := range c.cols {
		f := c.schema.Field(i)
		cs := ColumnStats{
			Name:         f.Name,
			Kind:         f.Kind,
			Nulls:        acc.nulls,
			Distinct:     int64(len(acc.seen)),
			Saturated:    acc.saturated,
			MaxScale:     acc.maxScale,
			MaxIntDigits: acc.maxIntDigits,
		}
		if acc.saturated {
			cs.Distinct = int64(c.distinctCap) + 1
		}
		st.Columns[i] = cs
	}
	return st
}

// fingerprint hashes the value as the file will store it: decimals that
// differ only in trailing zeros collapse to one entry.
func fingerprint(v models.Value) uint64 {
	if v.Kind() == models.KindDecimal {
		return xxhash.Sum64String(v.Dec().String())
	}
	return xxhash.Sum64String(v.Literal())
}
