// Package models provides the typed record model shared by every stage of
// the optimization pipeline.
//
// A RawRow is what an external source hands over: field name to untyped
// value. The Schema Normalizer turns it into a Record, a fixed-width slice
// of typed Values laid out in schema order, tagged with the row's input
// sequence number so sorting can stay stable.
package models

// RawRow is an untyped input row. Values are nil, integers, strings,
// json.Number, float64 (timestamps only) or decimal.Decimal.
type RawRow map[string]any

// Record is a normalized row.
type Record struct {
	// Seq is the 0-based position of the row in the input stream
	Seq uint64
	// Values holds one Value per schema field, in schema order
	Values []Value
}

// NewRecord allocates a record for a schema with n fields.
func NewRecord(seq uint64, n int) *Record {
	return &Record{Seq: seq, Values: make([]Value, n)}
}

// Get returns the value at a schema position, or Null when idx is out of
// range (the slot does not exist in this schema).
func (r *Record) Get(idx int) Value {
	if idx < 0 || idx >= len(r.Values) {
		return Null()
	}
	return r.Values[idx]
}
