package columnar

import (
	"sort"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Footer key-value metadata keys.
const (
	MetaPlan        = "wealthpack.plan"
	MetaTable       = "wealthpack.table"
	MetaVersion     = "wealthpack.version"
	MetaFingerprint = "wealthpack.plan_fingerprint"
	MetaScalePrefix = "wealthpack.scale."
)

var parquetCodecs = map[string]compress.Compression{
	layout.CodecSnappy:       compress.Codecs.Snappy,
	layout.CodecGzip:         compress.Codecs.Gzip,
	layout.CodecLZ4:          compress.Codecs.Lz4Raw,
	layout.CodecZstd:         compress.Codecs.Zstd,
	layout.CodecBrotli:       compress.Codecs.Brotli,
	layout.CodecUncompressed: compress.Codecs.Uncompressed,
}

func codecFor(name string) (compress.Compression, error) {
	c, ok := parquetCodecs[name]
	if !ok {
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unsupported parquet codec %q", name)
	}
	return c, nil
}

// arrowSchema maps the plan to an Arrow schema. Every column is nullable
// because Null is a legal value for all optional fields, and the plan's
// footer metadata rides on the schema.
func arrowSchema(s *models.Schema, plan *layout.ColumnPlan, meta map[string]string) (*arrow.Schema, error) {
	if len(plan.Columns) != s.Len() {
		return nil, errors.New(errors.ErrorTypeInternal, "plan does not match schema")
	}
	fields := make([]arrow.Field, len(plan.Columns))
	for i, col := range plan.Columns {
		var dt arrow.DataType
		switch col.PhysicalType {
		case layout.PhysicalDecimal128:
			dt = &arrow.Decimal128Type{Precision: col.Precision, Scale: col.Scale}
			meta[MetaScalePrefix+col.Name] = strconv.Itoa(int(col.Scale))
		case layout.PhysicalInt64:
			dt = arrow.PrimitiveTypes.Int64
		case layout.PhysicalString:
			dt = arrow.BinaryTypes.String
		default:
			return nil, errors.Newf(errors.ErrorTypeInternal, "column %s has unknown physical type %q", col.Name, col.PhysicalType)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: !s.Field(i).Required}
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = meta[k]
	}
	md := arrow.NewMetadata(keys, vals)
	return arrow.NewSchema(fields, &md), nil
}

// writerProps turns the plan's per-column decisions into Parquet writer
// properties.
func writerProps(plan *layout.ColumnPlan, createdBy string) (*parquet.WriterProperties, error) {
	codec, err := codecFor(plan.Codec)
	if err != nil {
		return nil, err
	}
	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(false),
		parquet.WithMaxRowGroupLength(int64(max(plan.RowGroupSize, 1))),
		parquet.WithStats(true),
		parquet.WithCreatedBy(createdBy),
	}
	if plan.CompressionLevel != 0 {
		opts = append(opts, parquet.WithCompressionLevel(plan.CompressionLevel))
	}
	for _, col := range plan.Columns {
		cc, err := codecFor(col.Codec)
		if err != nil {
			return nil, err
		}
		opts = append(opts, parquet.WithCompressionFor(col.Name, cc))
		switch col.Encoding {
		case layout.EncodingDictionary:
			opts = append(opts, parquet.WithDictionaryFor(col.Name, true))
		case layout.EncodingDelta:
			opts = append(opts,
				parquet.WithDictionaryFor(col.Name, false),
				parquet.WithEncodingFor(col.Name, parquet.Encodings.DeltaBinaryPacked))
		default:
			opts = append(opts,
				parquet.WithDictionaryFor(col.Name, false),
				parquet.WithEncodingFor(col.Name, parquet.Encodings.Plain))
		}
	}
	return parquet.NewWriterProperties(opts...), nil
}
