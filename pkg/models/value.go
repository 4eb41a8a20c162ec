package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind enumerates the typed slots a field value can occupy.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindDecimal
	KindString
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "null":
		return KindNull, nil
	case "integer", "int":
		return KindInteger, nil
	case "decimal":
		return KindDecimal, nil
	case "string":
		return KindString, nil
	case "timestamp":
		return KindTimestamp, nil
	}
	return KindNull, fmt.Errorf("unknown kind %q", s)
}

// MarshalText lets kinds appear by name in plans and config files.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Value is one typed field value. The zero Value is Null, the explicit
// "absent" marker; it never compares equal to a numeric zero or "".
type Value struct {
	kind Kind
	i    int64
	s    string
	d    decimal.Decimal
}

// Null returns the absent value.
func Null() Value { return Value{} }

// Integer wraps an int64.
func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }

// Decimal wraps an exact decimal. Negative zero collapses to zero because
// the coefficient is a big.Int, which has no signed zero.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, d: d} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Timestamp wraps epoch seconds.
func Timestamp(epochSeconds int64) Value { return Value{kind: KindTimestamp, i: epochSeconds} }

func (v Value) Kind() Kind           { return v.kind }
func (v Value) IsNull() bool         { return v.kind == KindNull }
func (v Value) Int() int64           { return v.i }
func (v Value) Str() string          { return v.s }
func (v Value) Epoch() int64         { return v.i }
func (v Value) Dec() decimal.Decimal { return v.d }

// Literal renders the value as text without losing digits. Decimals keep
// the scale they were written with ("123.450" stays "123.450").
func (v Value) Literal() string {
	switch v.kind {
	case KindInteger, KindTimestamp:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindDecimal:
		return DecimalLiteral(v.d)
	default:
		return ""
	}
}

// Equal reports exact equality, including decimal scale.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInteger, KindTimestamp:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindDecimal:
		return v.d.Equal(o.d) && v.d.Exponent() == o.d.Exponent()
	}
	return false
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.kind.String() + "(" + v.Literal() + ")"
}

// DecimalLiteral renders d with exactly as many fractional digits as its
// exponent carries.
func DecimalLiteral(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
