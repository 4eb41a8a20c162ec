package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// isoLayouts are tried, in order, for every timestamp string after the
// field's own layouts.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Epoch magnitudes at which an integer stops being seconds. 1e11 seconds
// is the year 5138; 1e11 milliseconds is 1973.
const (
	millisThreshold = 1e11
	microsThreshold = 1e14
	nanosThreshold  = 1e17
)

// ParseTimestamp normalizes any accepted timestamp representation to epoch
// seconds. Sub-second precision is floored. Unparseable input is a schema
// error; it is never mapped to zero. Numeric input is read in the unit its
// magnitude suggests.
func ParseTimestamp(v any, layouts []string) (int64, error) {
	return ParseTimestampIn(v, layouts, models.EpochAuto)
}

// ParseTimestampIn is ParseTimestamp with numeric input read in a fixed
// unit. EpochAuto falls back to the magnitude rule.
func ParseTimestampIn(v any, layouts []string, unit models.EpochUnit) (int64, error) {
	switch x := v.(type) {
	case time.Time:
		return x.Unix(), nil
	case int:
		return epochFromInt(int64(x), unit), nil
	case int32:
		return epochFromInt(int64(x), unit), nil
	case int64:
		return epochFromInt(x, unit), nil
	case float64:
		return epochFromFloat(x, unit)
	case float32:
		return epochFromFloat(float64(x), unit)
	case json.Number:
		return epochFromNumeric(string(x), unit)
	case decimal.Decimal:
		return epochFromDecimal(x, unit)
	case string:
		return parseTimestampString(x, layouts, unit)
	default:
		return 0, errors.Newf(errors.ErrorTypeSchema, "cannot interpret %T as a timestamp", v)
	}
}

func parseTimestampString(s string, layouts []string, unit models.EpochUnit) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New(errors.ErrorTypeSchema, "empty timestamp")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	if looksNumeric(s) {
		return epochFromNumeric(s, unit)
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeSchema, "unrecognized timestamp %q", s)
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	dot := false
	digits := 0
	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

func epochFromNumeric(s string, unit models.EpochUnit) (int64, error) {
	if i, err := strconv.ParseInt(strings.TrimPrefix(s, "+"), 10, 64); err == nil {
		return epochFromInt(i, unit), nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeSchema, "unrecognized epoch").WithDetail("value", s)
	}
	return epochFromDecimal(d, unit)
}

// epochFromDecimal floors fractional epochs without touching floats.
func epochFromDecimal(d decimal.Decimal, unit models.EpochUnit) (int64, error) {
	f := d.Floor()
	if !f.BigInt().IsInt64() {
		return 0, errors.Newf(errors.ErrorTypeSchema, "epoch %s out of range", d.String())
	}
	return epochFromInt(f.IntPart(), unit), nil
}

func epochFromFloat(f float64, unit models.EpochUnit) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, errors.Newf(errors.ErrorTypeSchema, "epoch %v out of range", f)
	}
	return epochFromInt(int64(math.Floor(f)), unit), nil
}

// epochFromInt converts an integer in unit to seconds. Without a unit it
// is read by magnitude as seconds, milliseconds, microseconds or
// nanoseconds.
func epochFromInt(v int64, unit models.EpochUnit) int64 {
	if per := unit.PerSecond(); per > 0 {
		return floorDiv(v, per)
	}
	a := v
	if a < 0 {
		a = -a
	}
	switch {
	case a >= nanosThreshold:
		return floorDiv(v, 1_000_000_000)
	case a >= microsThreshold:
		return floorDiv(v, 1_000_000)
	case a >= millisThreshold:
		return floorDiv(v, 1_000)
	default:
		return v
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
