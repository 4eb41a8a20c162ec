package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wealthpack/pkg/config"
	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/formats/columnar"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
	"github.com/ajitpratap0/wealthpack/pkg/source"
	"github.com/ajitpratap0/wealthpack/pkg/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 3
	cfg.BatchSize = 2
	cfg.RowGroupSize = 64
	cfg.Sort.TempDir = t.TempDir()
	cfg.Sort.Workers = 2
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, s *models.Schema) *Pipeline {
	t.Helper()
	p, err := New(cfg, s, Options{Version: "test", Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	return p
}

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.parquet")
	p := newPipeline(t, testConfig(t), testutil.ScenarioSchema(t))

	sum, err := p.Run(testutil.TestContext(t), source.FromRows(testutil.ScenarioRows()...), target)
	require.NoError(t, err)

	assert.Equal(t, int64(3), sum.RowsIn)
	assert.Equal(t, int64(3), sum.RowsOut)
	assert.Zero(t, sum.TotalDropped())
	assert.Equal(t, 1, sum.RowGroups)
	assert.NotEmpty(t, sum.RunID)
	assert.NotEmpty(t, sum.PlanFingerprint)
	assert.Equal(t, []string{"out.parquet"}, testutil.DirEntries(t, dir))

	col, ok := sum.Plan.Column("value")
	require.True(t, ok)
	assert.Equal(t, int32(3), col.Scale)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), sum.Bytes)

	rows, err := columnar.ReadRows(testutil.TestContext(t), target)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]string{
		"person": "A", "company": "X", "type": "equity", "ts": "1577836800", "value": "123.450",
	}, rows[0])
	assert.Equal(t, map[string]string{
		"person": "A", "company": "X", "type": "equity", "ts": "1577923200", "value": "100.000",
	}, rows[1])
	assert.Equal(t, "B", rows[2]["person"])
	assert.Equal(t, "7.000", rows[2]["value"])

	fi, err := columnar.Inspect(target)
	require.NoError(t, err)
	assert.Equal(t, sum.PlanFingerprint, fi.Fingerprint)
	assert.Equal(t, "scenario", fi.Table)
	assert.Equal(t, "test", fi.Version)
}

func TestRunLenientDropsBadRows(t *testing.T) {
	rows := append(testutil.ScenarioRows(),
		models.RawRow{"company": "X", "type": "equity", "value": "1"},
		models.RawRow{"person": "C", "value": "lots"},
		models.RawRow{"person": "C", "value": "0.0000000000001"},
		models.RawRow{"person": "C", "extra": "ignored"},
	)
	target := filepath.Join(t.TempDir(), "out.parquet")
	p := newPipeline(t, testConfig(t), testutil.ScenarioSchema(t))

	sum, err := p.Run(testutil.TestContext(t), source.FromRows(rows...), target)
	require.NoError(t, err)

	assert.Equal(t, int64(7), sum.RowsIn)
	assert.Equal(t, int64(4), sum.RowsOut)
	assert.Equal(t, map[string]int64{"schema": 2, "precision": 1}, sum.Dropped)
	assert.Equal(t, []string{"precision", "schema"}, sum.Reasons())
	assert.Equal(t, int64(1), sum.DroppedFields["extra"])
	assert.Equal(t, int64(1), sum.DefaultedFields["company"])
	assert.NoError(t, sum.CheckAccounting())

	n, err := promtest.GatherAndCount(p.Metrics().Registry(), "wealthpack_rows_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := columnar.ReadRows(testutil.TestContext(t), target)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestRunStrictAborts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.parquet")
	cfg := testConfig(t)
	cfg.Strict = true
	rows := append(testutil.ScenarioRows(), models.RawRow{"company": "X"})

	sum, err := newPipeline(t, cfg, testutil.ScenarioSchema(t)).Run(testutil.TestContext(t), source.FromRows(rows...), target)
	require.Error(t, err)
	assert.Nil(t, sum)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Empty(t, testutil.DirEntries(t, dir))
	assert.Empty(t, testutil.DirEntries(t, cfg.Sort.TempDir))
}

func TestRunSpilledMatchesInMemory(t *testing.T) {
	rows := testutil.RandomRows(7, 600)

	run := func(chunk int) (*Summary, string) {
		cfg := testConfig(t)
		cfg.BatchSize = 37
		cfg.Sort.ChunkRows = chunk
		target := filepath.Join(t.TempDir(), "out.parquet")
		sum, err := newPipeline(t, cfg, testutil.ScenarioSchema(t)).Run(testutil.TestContext(t), source.FromRows(rows...), target)
		require.NoError(t, err)
		return sum, target
	}

	memSum, memPath := run(10_000)
	spillSum, spillPath := run(16)
	assert.Zero(t, memSum.SpillRuns)
	assert.Greater(t, spillSum.SpillRuns, 1)
	assert.Equal(t, memSum.PlanFingerprint, spillSum.PlanFingerprint)
	assert.Equal(t, 10, spillSum.RowGroups)

	a, err := os.ReadFile(memPath)
	require.NoError(t, err)
	b, err := os.ReadFile(spillPath)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunRefusesExistingTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, os.WriteFile(target, []byte("previous"), 0o644))

	_, err := newPipeline(t, testConfig(t), testutil.ScenarioSchema(t)).
		Run(testutil.TestContext(t), source.FromRows(testutil.ScenarioRows()...), target)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWrite))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	cfg := testConfig(t)
	cfg.Overwrite = true
	_, err = newPipeline(t, cfg, testutil.ScenarioSchema(t)).
		Run(testutil.TestContext(t), source.FromRows(testutil.ScenarioRows()...), target)
	require.NoError(t, err)
	rows, err := columnar.ReadRows(testutil.TestContext(t), target)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunCanceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, testConfig(t), testutil.ScenarioSchema(t)).
		Run(ctx, source.FromRows(testutil.ScenarioRows()...), filepath.Join(dir, "out.parquet"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, testutil.DirEntries(t, dir))
}

func TestPlanOnly(t *testing.T) {
	cfg := testConfig(t)
	rows := append(testutil.ScenarioRows(), models.RawRow{"value": "1"})
	sum, err := newPipeline(t, cfg, testutil.ScenarioSchema(t)).Plan(testutil.TestContext(t), source.FromRows(rows...))
	require.NoError(t, err)

	assert.Equal(t, int64(4), sum.RowsIn)
	assert.Equal(t, int64(3), sum.RowsOut)
	assert.Equal(t, int64(3), sum.Plan.TotalRows)
	assert.Equal(t, 3, sum.Plan.RowGroupSize)
	assert.Empty(t, sum.Target)

	data, err := sum.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(4), decoded["rows_in"])
}

func TestRunAssetTable(t *testing.T) {
	rows := []models.RawRow{
		{"date": "20210101", "personName": "Bernard Arnault", "companyName": "LVMH", "ticker": "MC",
			"numberOfShares": json.Number("183455400"), "sharePrice": json.Number("801.5"),
			"exchangeRate": json.Number("1.2271"), "interactive": true},
		{"date": "20200101", "personName": "Bernard Arnault", "companyName": "LVMH", "ticker": "MC",
			"numberOfShares": json.Number("183455400"), "sharePrice": json.Number("433.1")},
	}
	target := filepath.Join(t.TempDir(), "assets.parquet")
	sum, err := newPipeline(t, testConfig(t), models.AssetSchema).
		Run(testutil.TestContext(t), source.FromRows(rows...), target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.RowsOut)

	out, err := columnar.ReadRows(testutil.TestContext(t), target)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1577836800", out[0]["date"])
	assert.Equal(t, "433.1", out[0]["sharePrice"])
	assert.Equal(t, "801.5", out[1]["sharePrice"])
	assert.Equal(t, "1.2271", out[1]["exchangeRate"])
	assert.NotContains(t, out[0], "exchangeRate")
	assert.Equal(t, "true", out[1]["interactive"])
}

func TestRunAssetFlagSpellingsCollapse(t *testing.T) {
	rows := []models.RawRow{
		{"date": "20200101", "personName": "A", "companyName": "X", "interactive": "True"},
		{"date": "20200102", "personName": "A", "companyName": "X", "interactive": "true"},
		{"date": "20200103", "personName": "A", "companyName": "X", "interactive": json.Number("1")},
		{"date": "20200104", "personName": "A", "companyName": "X", "interactive": "FALSE"},
		{"date": "20200105", "personName": "A", "companyName": "X", "interactive": ""},
	}
	target := filepath.Join(t.TempDir(), "assets.parquet")
	sum, err := newPipeline(t, testConfig(t), models.AssetSchema).
		Run(testutil.TestContext(t), source.FromRows(rows...), target)
	require.NoError(t, err)

	col, ok := sum.Plan.Column("interactive")
	require.True(t, ok)
	assert.Equal(t, int64(2), col.Distinct)
	assert.Equal(t, int64(1), col.Nulls)
	assert.Equal(t, int64(1), sum.DefaultedFields["interactive"])

	out, err := columnar.ReadRows(testutil.TestContext(t), target)
	require.NoError(t, err)
	require.Len(t, out, 5)
	// nulls, then false, then true; date breaks the tie
	assert.NotContains(t, out[0], "interactive")
	assert.Equal(t, "false", out[1]["interactive"])
	for _, r := range out[2:] {
		assert.Equal(t, "true", r["interactive"])
	}
	assert.Equal(t, "1577836800", out[2]["date"])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DictionaryThreshold = 1.5
	_, err := New(cfg, testutil.ScenarioSchema(t), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewRejectsLevelTheCodecCannotUse(t *testing.T) {
	cfg := testConfig(t)
	cfg.Codec = "gzip"
	cfg.CompressionLevel = 19
	_, err := New(cfg, testutil.ScenarioSchema(t), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.CompressionLevel = 9
	dir := t.TempDir()
	sum, err := newPipeline(t, cfg, testutil.ScenarioSchema(t)).
		Run(testutil.TestContext(t), source.FromRows(testutil.ScenarioRows()...), filepath.Join(dir, "out.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "gzip", sum.Plan.Codec)
	assert.Equal(t, 9, sum.Plan.CompressionLevel)
	assert.Equal(t, []string{"out.parquet"}, testutil.DirEntries(t, dir))
}
