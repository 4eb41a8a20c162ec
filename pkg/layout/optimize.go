package layout

import (
	"strings"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Tier is a named compression trade-off.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierMaxRatio Tier = "max-ratio"
)

// Codec names understood by the writer.
const (
	CodecSnappy       = "snappy"
	CodecGzip         = "gzip"
	CodecLZ4          = "lz4"
	CodecZstd         = "zstd"
	CodecBrotli       = "brotli"
	CodecUncompressed = "uncompressed"
)

var codecs = map[string]bool{
	CodecSnappy: true, CodecGzip: true, CodecLZ4: true,
	CodecZstd: true, CodecBrotli: true, CodecUncompressed: true,
}

// levelRanges lists the explicit levels each codec's encoder accepts.
// Level 0 always means the codec default; codecs absent here take no level.
var levelRanges = map[string]struct{ min, max int }{
	CodecGzip:   {-1, 9},
	CodecBrotli: {0, 11},
	CodecZstd:   {1, 22},
}

// Options are the tunables of the optimizer.
type Options struct {
	Table               string
	RowGroupSize        int
	DictionaryThreshold float64
	Tier                Tier
	// Codec overrides the tier's codec when set.
	Codec string
	// CompressionLevel overrides the tier's level when non-zero.
	CompressionLevel int
}

// ResolveCodec maps a tier and the optional overrides to a codec name and
// level. Level 0 leaves the codec's own default in place.
func ResolveCodec(tier Tier, codec string, level int) (string, int, error) {
	var name string
	var lvl int
	switch tier {
	case TierFast:
		name = CodecSnappy
	case TierBalanced, "":
		name, lvl = CodecZstd, 3
	case TierMaxRatio:
		name, lvl = CodecZstd, 19
	default:
		return "", 0, errors.Newf(errors.ErrorTypeConfig, "unknown compression tier %q", tier)
	}
	if codec != "" {
		codec = strings.ToLower(codec)
		if !codecs[codec] {
			return "", 0, errors.Newf(errors.ErrorTypeConfig, "unknown codec %q", codec)
		}
		if codec != name {
			lvl = 0
		}
		name = codec
	}
	if level != 0 {
		lvl = level
	}
	if err := checkLevel(name, lvl); err != nil {
		return "", 0, err
	}
	return name, lvl, nil
}

func checkLevel(codec string, level int) error {
	if level == 0 {
		return nil
	}
	r, ok := levelRanges[codec]
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "codec %s takes no compression level, got %d", codec, level)
	}
	if level < r.min || level > r.max {
		return errors.Newf(errors.ErrorTypeConfig,
			"compression level %d out of range for %s (%d..%d)", level, codec, r.min, r.max)
	}
	return nil
}

// Optimize decides the physical layout of every column. It performs no
// I/O and its result depends only on its arguments, so identical
// statistics always produce an identical plan.
func Optimize(schema *models.Schema, stats *Stats, scales fixedpoint.Scales, opts Options) (*ColumnPlan, error) {
	if opts.RowGroupSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "row group size must be positive, got %d", opts.RowGroupSize)
	}
	if opts.DictionaryThreshold <= 0 || opts.DictionaryThreshold >= 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"dictionary threshold must be in (0, 1), got %v", opts.DictionaryThreshold)
	}
	if stats == nil || len(stats.Columns) != schema.Len() {
		return nil, errors.New(errors.ErrorTypeInternal, "statistics do not match schema")
	}
	codec, level, err := ResolveCodec(opts.Tier, opts.Codec, opts.CompressionLevel)
	if err != nil {
		return nil, err
	}

	table := opts.Table
	if table == "" {
		table = schema.Name()
	}
	rowGroup := int64(opts.RowGroupSize)
	if rows := max(stats.Rows, 1); rows < rowGroup {
		rowGroup = rows
	}

	plan := &ColumnPlan{
		Table:               table,
		TotalRows:           stats.Rows,
		RowGroupSize:        int(rowGroup),
		Codec:               codec,
		CompressionLevel:    level,
		DictionaryThreshold: opts.DictionaryThreshold,
		Columns:             make([]Column, schema.Len()),
	}
	for i := 0; i < schema.Len(); i++ {
		f := schema.Field(i)
		cs := stats.Columns[i]
		col := Column{
			Name:     f.Name,
			Kind:     f.Kind,
			Codec:    codec,
			Distinct: cs.Distinct,
			Nulls:    cs.Nulls,
		}
		switch f.Kind {
		case models.KindDecimal:
			sc := scales.Column(i)
			col.PhysicalType = PhysicalDecimal128
			col.Scale, col.Precision = sc.Scale, sc.Precision()
		case models.KindInteger, models.KindTimestamp:
			col.PhysicalType = PhysicalInt64
		default:
			col.PhysicalType = PhysicalString
		}
		col.Encoding = chooseEncoding(f.Kind, cs, stats.Rows, opts.DictionaryThreshold)
		plan.Columns[i] = col
	}
	return plan, nil
}

func chooseEncoding(kind models.Kind, cs ColumnStats, rows int64, threshold float64) Encoding {
	nonNull := cs.NonNull(rows)
	if nonNull > 0 && !cs.Saturated && float64(cs.Distinct)/float64(nonNull) < threshold {
		return EncodingDictionary
	}
	if nonNull > 0 && (kind == models.KindInteger || kind == models.KindTimestamp) {
		return EncodingDelta
	}
	return EncodingPlain
}
