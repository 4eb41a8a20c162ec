package layout

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

func testSchema(t *testing.T) *models.Schema {
	t.Helper()
	s, err := models.NewSchema("layout", []models.FieldSpec{
		{Name: "person", Kind: models.KindString, Required: true},
		{Name: "type", Kind: models.KindString},
		{Name: "ts", Kind: models.KindTimestamp},
		{Name: "value", Kind: models.KindDecimal},
		{Name: "shares", Kind: models.KindInteger},
		{Name: "note", Kind: models.KindString},
	}, models.SortRoles{Person: "person", Type: "type", Timestamp: "ts"})
	require.NoError(t, err)
	return s
}

// collect builds n rows: person has people distinct values, type cycles
// over two values, ts and shares are unique, note is always null.
func collect(t *testing.T, s *models.Schema, n, people int) (*Stats, fixedpoint.Scales) {
	t.Helper()
	c := NewCollector(s, 0)
	tr := fixedpoint.NewTracker(s.Len(), fixedpoint.Limits{MaxScale: 10})
	for i := 0; i < n; i++ {
		r := models.NewRecord(uint64(i), s.Len())
		r.Values[0] = models.String(fmt.Sprintf("p%d", i%people))
		r.Values[1] = models.String([]string{"equity", "option"}[i%2])
		r.Values[2] = models.Timestamp(int64(1577836800 + i))
		d := decimal.RequireFromString(fmt.Sprintf("%d.25", i))
		r.Values[3] = models.Decimal(d)
		require.NoError(t, tr.Observe(3, d))
		r.Values[4] = models.Integer(int64(i))
		c.Observe(r)
	}
	return c.Freeze(), tr.Freeze()
}

func opts() Options {
	return Options{RowGroupSize: 1000, DictionaryThreshold: 0.05, Tier: TierBalanced}
}

func TestCollectorCountsNullsAndDistinct(t *testing.T) {
	s := testSchema(t)
	st, _ := collect(t, s, 200, 4)
	assert.Equal(t, int64(200), st.Rows)
	assert.Equal(t, int64(4), st.Columns[0].Distinct)
	assert.Equal(t, int64(2), st.Columns[1].Distinct)
	assert.Equal(t, int64(200), st.Columns[2].Distinct)
	assert.Equal(t, int64(200), st.Columns[5].Nulls)
	assert.Equal(t, int64(0), st.Columns[5].Distinct)
	assert.Equal(t, int32(2), st.Columns[3].MaxScale)
	assert.Equal(t, int32(3), st.Columns[3].MaxIntDigits)
}

func TestCollectorTrailingZerosAreOneValue(t *testing.T) {
	s := testSchema(t)
	c := NewCollector(s, 0)
	for i, lit := range []string{"1.5", "1.50", "1.500"} {
		r := models.NewRecord(uint64(i), s.Len())
		r.Values[3] = models.Decimal(decimal.RequireFromString(lit))
		c.Observe(r)
	}
	assert.Equal(t, int64(1), c.Freeze().Columns[3].Distinct)
}

func TestCollectorCapSaturates(t *testing.T) {
	s := testSchema(t)
	c := NewCollector(s, 10)
	for i := 0; i < 50; i++ {
		r := models.NewRecord(uint64(i), s.Len())
		r.Values[4] = models.Integer(int64(i))
		c.Observe(r)
	}
	cs := c.Freeze().Columns[4]
	assert.True(t, cs.Saturated)
	assert.Equal(t, int64(11), cs.Distinct)
}

func TestCollectorMergeIsCommutative(t *testing.T) {
	s := testSchema(t)
	build := func(lo, hi int) *Collector {
		c := NewCollector(s, 0)
		for i := lo; i < hi; i++ {
			r := models.NewRecord(uint64(i), s.Len())
			r.Values[0] = models.String(fmt.Sprintf("p%d", i%7))
			r.Values[4] = models.Integer(int64(i % 13))
			c.Observe(r)
		}
		return c
	}
	a, b := build(0, 40), build(40, 100)
	a.Merge(b)
	c, d := build(40, 100), build(0, 40)
	c.Merge(d)
	assert.Equal(t, a.Freeze(), c.Freeze())
	assert.Equal(t, int64(7), a.Freeze().Columns[0].Distinct)
	assert.Equal(t, int64(13), a.Freeze().Columns[4].Distinct)
}

func TestOptimizeChoosesEncodings(t *testing.T) {
	s := testSchema(t)
	st, scales := collect(t, s, 1000, 3)

	plan, err := Optimize(s, st, scales, opts())
	require.NoError(t, err)

	want := map[string]Encoding{
		"person": EncodingDictionary,
		"type":   EncodingDictionary,
		"ts":     EncodingDelta,
		"value":  EncodingPlain,
		"shares": EncodingDelta,
		"note":   EncodingPlain,
	}
	for name, enc := range want {
		col, ok := plan.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, enc, col.Encoding, name)
		assert.Equal(t, CodecZstd, col.Codec)
	}
	value, _ := plan.Column("value")
	assert.Equal(t, PhysicalDecimal128, value.PhysicalType)
	assert.Equal(t, int32(2), value.Scale)
	assert.Equal(t, int32(5), value.Precision)
	assert.Equal(t, "layout", plan.Table)
	assert.Equal(t, 3, plan.CompressionLevel)
}

func TestOptimizeDictionaryThresholdBoundary(t *testing.T) {
	s := testSchema(t)
	// 5 distinct over 100 rows is exactly 0.05: not strictly below.
	st, scales := collect(t, s, 100, 5)
	plan, err := Optimize(s, st, scales, opts())
	require.NoError(t, err)
	col, _ := plan.Column("person")
	assert.Equal(t, EncodingPlain, col.Encoding)

	st, scales = collect(t, s, 100, 4)
	plan, err = Optimize(s, st, scales, opts())
	require.NoError(t, err)
	col, _ = plan.Column("person")
	assert.Equal(t, EncodingDictionary, col.Encoding)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	s := testSchema(t)
	st, scales := collect(t, s, 500, 9)

	p1, err := Optimize(s, st, scales, opts())
	require.NoError(t, err)
	p2, err := Optimize(s, st, scales, opts())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	j1, err := p1.JSON()
	require.NoError(t, err)
	j2, err := p2.JSON()
	require.NoError(t, err)
	assert.Equal(t, j1, j2)

	f1, _ := p1.Fingerprint()
	f2, _ := p2.Fingerprint()
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 16)

	back, err := ParsePlan(j1)
	require.NoError(t, err)
	assert.Equal(t, p1, back)
}

func TestOptimizeRowGroupSize(t *testing.T) {
	s := testSchema(t)
	st, scales := collect(t, s, 2500, 3)
	plan, err := Optimize(s, st, scales, opts())
	require.NoError(t, err)
	assert.Equal(t, 1000, plan.RowGroupSize)
	assert.Equal(t, 3, plan.RowGroups())

	st, scales = collect(t, s, 10, 3)
	plan, err = Optimize(s, st, scales, opts())
	require.NoError(t, err)
	assert.Equal(t, 10, plan.RowGroupSize)
	assert.Equal(t, 1, plan.RowGroups())

	empty := NewCollector(s, 0).Freeze()
	plan, err = Optimize(s, empty, nil, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, plan.RowGroupSize)
	assert.Equal(t, 0, plan.RowGroups())
	value, _ := plan.Column("value")
	assert.Equal(t, int32(1), value.Precision)
	assert.Equal(t, EncodingPlain, value.Encoding)
}

func TestOptimizeRejectsBadOptions(t *testing.T) {
	s := testSchema(t)
	st, scales := collect(t, s, 10, 3)
	for _, o := range []Options{
		{RowGroupSize: 0, DictionaryThreshold: 0.05},
		{RowGroupSize: 10, DictionaryThreshold: 0},
		{RowGroupSize: 10, DictionaryThreshold: 1},
		{RowGroupSize: 10, DictionaryThreshold: 0.05, Tier: "tiny"},
		{RowGroupSize: 10, DictionaryThreshold: 0.05, Codec: "rar"},
	} {
		_, err := Optimize(s, st, scales, o)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "%+v", o)
	}
}

func TestResolveCodec(t *testing.T) {
	tests := []struct {
		tier      Tier
		codec     string
		level     int
		wantCodec string
		wantLevel int
	}{
		{TierFast, "", 0, CodecSnappy, 0},
		{TierBalanced, "", 0, CodecZstd, 3},
		{"", "", 0, CodecZstd, 3},
		{TierMaxRatio, "", 0, CodecZstd, 19},
		{TierMaxRatio, "", 9, CodecZstd, 9},
		{TierBalanced, "GZIP", 0, CodecGzip, 0},
		{TierBalanced, "brotli", 5, CodecBrotli, 5},
		{TierFast, "uncompressed", 0, CodecUncompressed, 0},
	}
	for _, tt := range tests {
		name, level, err := ResolveCodec(tt.tier, tt.codec, tt.level)
		require.NoError(t, err)
		assert.Equal(t, tt.wantCodec, name)
		assert.Equal(t, tt.wantLevel, level)
	}
}

func TestResolveCodecRejectsLevelOutOfRange(t *testing.T) {
	tests := []struct {
		tier  Tier
		codec string
		level int
	}{
		{TierBalanced, "gzip", 19},
		{TierBalanced, "gzip", -2},
		{TierBalanced, "brotli", 12},
		{TierBalanced, "zstd", 23},
		{TierBalanced, "zstd", -1},
		{TierMaxRatio, "", 30},
		{TierFast, "", 3},
		{TierBalanced, "lz4", 1},
		{TierBalanced, "uncompressed", 1},
	}
	for _, tt := range tests {
		_, _, err := ResolveCodec(tt.tier, tt.codec, tt.level)
		require.Error(t, err, "%s/%s level %d", tt.tier, tt.codec, tt.level)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	}

	for _, level := range []int{-1, 1, 9} {
		_, got, err := ResolveCodec(TierBalanced, "gzip", level)
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}
}
