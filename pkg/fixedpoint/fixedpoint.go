// Package fixedpoint is the precision-preserving decimal codec.
//
// Monetary fields travel through the pipeline as shopspring decimals, which
// keep the exponent they were parsed with, and are only turned into scaled
// integers (Parquet DECIMAL, 128-bit) at write time. No step ever goes
// through a binary floating-point value.
//
// The column scale is the largest literal scale observed in a single
// pre-pass over the whole dataset (Tracker). A column whose values were
// written as "123.450" and "100" gets scale 3 and renders "100.000".
package fixedpoint

import (
	"math/big"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
)

// MaxPrecision is the widest decimal a 128-bit Parquet column can hold.
const MaxPrecision = 38

// Parse converts a source representation into an exact decimal. Strings,
// integers, json.Number and decimals are accepted; floats are refused so a
// rounded binary value can never sneak in.
func Parse(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return parseString(x)
	case json.Number:
		return parseString(string(x))
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case float32, float64:
		return decimal.Decimal{}, errors.New(errors.ErrorTypeSchema, "binary floating-point value not accepted for a decimal field").
			WithDetail("value", x)
	default:
		return decimal.Decimal{}, errors.Newf(errors.ErrorTypeSchema, "cannot convert %T to decimal", v)
	}
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" || strings.ContainsAny(s, " ,_") {
		return decimal.Decimal{}, errors.Newf(errors.ErrorTypeSchema, "not a decimal: %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, errors.ErrorTypeSchema, "not a decimal").WithDetail("value", s)
	}
	return d, nil
}

// ScaleOf returns the number of fractional digits d was written with.
func ScaleOf(d decimal.Decimal) int32 {
	if exp := d.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}

// IntDigitsOf returns the number of digits left of the decimal point,
// ignoring sign; zero-valued integer parts count as zero digits.
func IntDigitsOf(d decimal.Decimal) int32 {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return 0
	}
	n := int32(len(coef.Abs(coef).String()))
	n += d.Exponent()
	if n < 0 {
		return 0
	}
	return n
}

// Canonical collapses signed zero to zero while keeping the scale.
func Canonical(d decimal.Decimal) decimal.Decimal {
	if d.Sign() == 0 {
		return decimal.New(0, d.Exponent())
	}
	return d
}

// Codec encodes one column at a fixed scale.
type Codec struct {
	Scale     int32
	Precision int32
}

// Encode scales d to the column's scale. It fails with a precision error
// if d carries more fractional digits than the column, or too many digits
// overall.
func (c Codec) Encode(d decimal.Decimal) (decimal128.Num, error) {
	if s := ScaleOf(d); s > c.Scale {
		return decimal128.Num{}, errors.Newf(errors.ErrorTypePrecision, "value %s needs scale %d, column scale is %d",
			d.String(), s, c.Scale)
	}
	unscaled := d.Shift(c.Scale).BigInt()
	if c.Precision > 0 {
		if digits := int32(len(new(big.Int).Abs(unscaled).String())); digits > c.Precision {
			return decimal128.Num{}, errors.Newf(errors.ErrorTypePrecision, "value %s needs %d digits, column precision is %d",
				d.String(), digits, c.Precision)
		}
	}
	return decimal128.FromBigInt(unscaled), nil
}

// Decode renders n with exactly Scale fractional digits.
func (c Codec) Decode(n decimal128.Num) string {
	return decimal.NewFromBigInt(n.BigInt(), -c.Scale).StringFixed(c.Scale)
}

// Format renders d at the column scale without going through the
// integer representation.
func (c Codec) Format(d decimal.Decimal) (string, error) {
	if s := ScaleOf(d); s > c.Scale {
		return "", errors.Newf(errors.ErrorTypePrecision, "value %s needs scale %d, column scale is %d",
			d.String(), s, c.Scale)
	}
	return Canonical(d).StringFixed(c.Scale), nil
}
