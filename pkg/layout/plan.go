// Package layout holds the columnar layout optimizer: single-pass column
// statistics and the pure decision function that turns them into a
// ColumnPlan for the writer.
package layout

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Encoding is the physical encoding chosen for a column.
type Encoding string

const (
	EncodingDictionary Encoding = "dictionary"
	EncodingPlain      Encoding = "plain"
	EncodingDelta      Encoding = "delta"
)

// Physical types a column can be written as.
const (
	PhysicalDecimal128 = "decimal128"
	PhysicalInt64      = "int64"
	PhysicalString     = "string"
)

// Column is the layout decision for one column.
type Column struct {
	Name         string      `json:"name"`
	Kind         models.Kind `json:"kind"`
	PhysicalType string      `json:"physical_type"`
	Encoding     Encoding    `json:"encoding"`
	Scale        int32       `json:"scale,omitempty"`
	Precision    int32       `json:"precision,omitempty"`
	Codec        string      `json:"codec"`
	Distinct     int64       `json:"distinct"`
	Nulls        int64       `json:"nulls"`
}

// ColumnPlan is the writer configuration for one output file. It is built
// once and never mutated.
type ColumnPlan struct {
	Table               string   `json:"table"`
	TotalRows           int64    `json:"total_rows"`
	RowGroupSize        int      `json:"row_group_size"`
	Codec               string   `json:"codec"`
	CompressionLevel    int      `json:"compression_level,omitempty"`
	DictionaryThreshold float64  `json:"dictionary_threshold"`
	Columns             []Column `json:"columns"`
}

// Column returns the plan of the named column.
func (p *ColumnPlan) Column(name string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RowGroups is the number of row groups the plan produces.
func (p *ColumnPlan) RowGroups() int {
	if p.TotalRows == 0 {
		return 0
	}
	return int((p.TotalRows + int64(p.RowGroupSize) - 1) / int64(p.RowGroupSize))
}

// JSON renders the plan. Field order is fixed by the struct, so equal
// plans render to equal bytes.
func (p *ColumnPlan) JSON() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "marshal column plan")
	}
	return b, nil
}

// Fingerprint is a stable hash of the plan's JSON form.
func (p *ColumnPlan) Fingerprint() (string, error) {
	b, err := p.JSON()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}

// ParsePlan decodes a plan rendered by JSON.
func ParsePlan(data []byte) (*ColumnPlan, error) {
	var p ColumnPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "unmarshal column plan")
	}
	return &p, nil
}
