package fixedpoint

import (
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
)

// ColumnScale is what the pre-pass learned about one decimal column.
type ColumnScale struct {
	Scale     int32 `json:"scale"`
	IntDigits int32 `json:"int_digits"`
	Observed  int64 `json:"observed"`
}

// Precision is the DECIMAL precision the column needs, at least 1.
func (c ColumnScale) Precision() int32 {
	p := c.Scale + c.IntDigits
	if p < 1 {
		return 1
	}
	return p
}

// Codec returns the encoder for this column.
func (c ColumnScale) Codec() Codec {
	return Codec{Scale: c.Scale, Precision: c.Precision()}
}

// Limits bounds what a single value may require. Every accepted value
// satisfies IntDigits + MaxScale <= MaxPrecision, so a frozen column can
// never need more than 38 digits whatever mix of values it saw.
type Limits struct {
	MaxScale int32
}

// Check validates one value against the limits without recording it.
// It is safe to call from many goroutines.
func (l Limits) Check(d decimal.Decimal) error {
	scale := ScaleOf(d)
	if scale > l.MaxScale {
		return errors.Newf(errors.ErrorTypePrecision, "value %s has scale %d, maximum is %d",
			d.String(), scale, l.MaxScale).WithDetail("scale", scale)
	}
	if digits := IntDigitsOf(d); digits+l.MaxScale > MaxPrecision {
		return errors.Newf(errors.ErrorTypePrecision, "value %s has %d integer digits, at most %d fit beside scale %d",
			d.String(), digits, MaxPrecision-l.MaxScale, l.MaxScale).WithDetail("int_digits", digits)
	}
	return nil
}

// Tracker accumulates per-column scale over the pre-pass. Columns are
// addressed by schema position. A Tracker is not safe for concurrent use;
// workers keep their own and Merge them.
type Tracker struct {
	limits Limits
	cols   []ColumnScale
}

// NewTracker creates a tracker for a schema with n fields.
func NewTracker(n int, limits Limits) *Tracker {
	return &Tracker{limits: limits, cols: make([]ColumnScale, n)}
}

// Observe checks d and widens the column's scale and integer digits.
// A rejected value leaves the tracker unchanged.
func (t *Tracker) Observe(col int, d decimal.Decimal) error {
	if err := t.limits.Check(d); err != nil {
		return errors.Wrap(err, errors.ErrorTypePrecision, "decimal out of range").WithDetail("column", col)
	}
	c := &t.cols[col]
	if s := ScaleOf(d); s > c.Scale {
		c.Scale = s
	}
	if n := IntDigitsOf(d); n > c.IntDigits {
		c.IntDigits = n
	}
	c.Observed++
	return nil
}

// Merge folds another tracker's observations into t. Merging is
// commutative, so the result does not depend on worker scheduling.
func (t *Tracker) Merge(o *Tracker) {
	for i := range t.cols {
		if i >= len(o.cols) {
			break
		}
		if o.cols[i].Scale > t.cols[i].Scale {
			t.cols[i].Scale = o.cols[i].Scale
		}
		if o.cols[i].IntDigits > t.cols[i].IntDigits {
			t.cols[i].IntDigits = o.cols[i].IntDigits
		}
		t.cols[i].Observed += o.cols[i].Observed
	}
}

// Freeze returns an immutable snapshot of the per-column scales.
func (t *Tracker) Freeze() Scales {
	return Scales(append([]ColumnScale(nil), t.cols...))
}

// Scales is the frozen result of the pre-pass, indexed by schema position.
type Scales []ColumnScale

// Column returns the scale of a column, or the zero scale when idx is out
// of range.
func (s Scales) Column(idx int) ColumnScale {
	if idx < 0 || idx >= len(s) {
		return ColumnScale{}
	}
	return s[idx]
}
