// Package schema implements the Schema Normalizer: it turns untyped input
// rows into typed records of a fixed schema.
//
// The normalizer is tolerant of superset inputs (unknown fields are dropped
// and reported) and strict about types: a required field that is missing,
// a wealth figure that is not a number, or a timestamp that cannot be read
// all reject the row with a schema error. Optional fields that are absent
// become models.Null, never zero or "".
package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Diagnostics are the non-fatal signals raised while normalizing one row.
type Diagnostics struct {
	// Dropped lists unknown input fields that were discarded, sorted
	Dropped []string
	// Defaulted lists optional schema fields that were absent, null or empty
	// and set to Null
	Defaulted []string
}

// Empty reports whether no signal was raised.
func (d Diagnostics) Empty() bool { return len(d.Dropped) == 0 && len(d.Defaulted) == 0 }

// Normalizer converts raw rows to records. It holds no mutable state and
// is safe for concurrent use.
type Normalizer struct {
	schema *models.Schema
}

// NewNormalizer creates a normalizer for schema.
func NewNormalizer(schema *models.Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Schema returns the target schema.
func (n *Normalizer) Schema() *models.Schema { return n.schema }

// Normalize types one raw row. Fields are visited in schema order so the
// reported error for a row with several problems is deterministic.
func (n *Normalizer) Normalize(seq uint64, row models.RawRow) (*models.Record, Diagnostics, error) {
	var diag Diagnostics
	rec := models.NewRecord(seq, n.schema.Len())

	for i := 0; i < n.schema.Len(); i++ {
		spec := n.schema.Field(i)
		raw, present, err := lookup(row, spec)
		if err != nil {
			return nil, diag, schemaErr(err, seq, spec.Name)
		}
		if !present {
			if spec.Required {
				return nil, diag, errors.New(errors.ErrorTypeSchema, "missing required field").
					WithDetail("seq", seq).WithDetail("field", spec.Name)
			}
			diag.Defaulted = append(diag.Defaulted, spec.Name)
			continue
		}

		v, err := convert(spec, raw)
		if err != nil {
			return nil, diag, schemaErr(err, seq, spec.Name)
		}
		if v.IsNull() {
			if spec.Required {
				return nil, diag, errors.New(errors.ErrorTypeSchema, "required field is empty").
					WithDetail("seq", seq).WithDetail("field", spec.Name)
			}
			diag.Defaulted = append(diag.Defaulted, spec.Name)
			continue
		}
		rec.Values[i] = v
	}

	for name := range row {
		if _, known := n.schema.Lookup(name); !known {
			diag.Dropped = append(diag.Dropped, name)
		}
	}
	sort.Strings(diag.Dropped)

	return rec, diag, nil
}

func schemaErr(err error, seq uint64, field string) error {
	return errors.Wrap(err, errors.ErrorTypeSchema, "invalid field "+field).
		WithDetail("seq", seq).WithDetail("field", field)
}

// lookup finds a field by canonical name, then aliases. Two spellings
// carrying different non-empty values make the row ambiguous.
func lookup(row models.RawRow, spec models.FieldSpec) (any, bool, error) {
	raw, present := row[spec.Name]
	for _, alias := range spec.Aliases {
		v, ok := row[alias]
		if !ok {
			continue
		}
		switch {
		case !present || isEmpty(raw):
			raw, present = v, true
		case !isEmpty(v) && !sameRaw(raw, v):
			return nil, false, errors.Newf(errors.ErrorTypeSchema, "ambiguous: %s and %s disagree", spec.Name, alias)
		}
	}
	return raw, present, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func sameRaw(a, b any) bool {
	return rawText(a) == rawText(b)
}

func convert(spec models.FieldSpec, raw any) (models.Value, error) {
	if isEmpty(raw) {
		return models.Null(), nil
	}
	switch spec.Kind {
	case models.KindString:
		if spec.Flag {
			return flagValue(raw), nil
		}
		return models.String(rawText(raw)), nil

	case models.KindDecimal:
		d, err := fixedpoint.Parse(raw)
		if err != nil {
			return models.Null(), err
		}
		return models.Decimal(fixedpoint.Canonical(d)), nil

	case models.KindInteger:
		i, err := parseInteger(raw)
		if err != nil {
			return models.Null(), err
		}
		return models.Integer(i), nil

	case models.KindTimestamp:
		ts, err := ParseTimestampIn(raw, spec.Layouts, spec.EpochUnit)
		if err != nil {
			return models.Null(), err
		}
		return models.Timestamp(ts), nil
	}
	return models.Null(), errors.Newf(errors.ErrorTypeInternal, "field %s has unsupported kind %s", spec.Name, spec.Kind)
}

// rawText renders a raw value as the text the source most likely held.
func rawText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case decimal.Decimal:
		return models.DecimalLiteral(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// flagValue reduces the spellings of a boolean to "true" or "false".
// Anything else is Null rather than an error.
func flagValue(raw any) models.Value {
	switch strings.ToLower(strings.TrimSpace(rawText(raw))) {
	case "true", "1":
		return models.String("true")
	case "false", "0":
		return models.String("false")
	}
	return models.Null()
}

func parseInteger(raw any) (int64, error) {
	switch x := raw.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		return parseIntText(string(x))
	case string:
		return parseIntText(x)
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, errors.Newf(errors.ErrorTypeSchema, "%v is not an integer", x)
		}
		return int64(x), nil
	case decimal.Decimal:
		if !x.Equal(x.Truncate(0)) || !x.BigInt().IsInt64() {
			return 0, errors.Newf(errors.ErrorTypeSchema, "%s is not an integer", x.String())
		}
		return x.IntPart(), nil
	}
	return 0, errors.Newf(errors.ErrorTypeSchema, "cannot interpret %T as an integer", raw)
}

func parseIntText(s string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeSchema, "not an integer").WithDetail("value", s)
	}
	return i, nil
}
