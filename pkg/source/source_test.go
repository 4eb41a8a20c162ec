package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

func TestCSV(t *testing.T) {
	in := "personName,finalWorth,city\nA,123.450,\nB,100,Paris\n"
	src, err := NewCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"personName", "finalWorth", "city"}, src.Header())

	rows, err := Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RawRow{"personName": "A", "finalWorth": "123.450", "city": nil}, rows[0])
	assert.Equal(t, "Paris", rows[1]["city"])
	require.NoError(t, src.Close())
}

func TestCSVErrors(t *testing.T) {
	_, err := NewCSV(strings.NewReader("a,a\n1,2\n"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	src, err := NewCSV(strings.NewReader("a,b\n1,2\n3\n"))
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestCSVEmpty(t *testing.T) {
	src, err := NewCSV(strings.NewReader(""))
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestJSONLines(t *testing.T) {
	in := `{"person":"A","value":"123.450","shares":183455400}
{"person":"B","value":0.1}

{"person":"C"}`
	rows, err := Drain(context.Background(), NewJSONLines(strings.NewReader(in)))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, json.Number("183455400"), toStdNumber(rows[0]["shares"]))
	assert.Equal(t, json.Number("0.1"), toStdNumber(rows[1]["value"]))
	assert.Equal(t, "C", rows[2]["person"])
}

func TestJSONLinesRejectsNonObjects(t *testing.T) {
	src := NewJSONLines(strings.NewReader(`{"a":1} [1,2]`))
	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	src = NewJSONLines(strings.NewReader(`null`))
	_, err = src.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func toStdNumber(v any) json.Number {
	n, _ := v.(json.Number)
	return n
}

const snapshotDoc = `{
  "personList": {"personsLists": [
    {"personName": "Bernard Arnault", "finalWorth": 186200.0, "industries": ["Fashion & Retail"],
     "birthDate": -653356800000, "nested": {"x": 1},
     "financialAssets": [
       {"companyName": "LVMH", "ticker": "MC", "numberOfShares": 183455400, "sharePrice": 801.5, "interactive": true},
       {"companyName": "Dior", "ticker": "CDI"}
     ]},
    {"personName": "Elon Musk", "finalWorth": 180000}
  ]}
}`

func writeSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20210101_list.json"), []byte(snapshotDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20200101.json"), []byte(`{"data":[{"personName":"Old"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20200615.json"), []byte(`{"truncated`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	return dir
}

func TestSnapshotsHolders(t *testing.T) {
	dir := writeSnapshots(t)
	src, err := NewSnapshots(dir, models.TableHolders, zaptest.NewLogger(t))
	require.NoError(t, err)

	rows, err := Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "20200101", rows[0]["date"])
	assert.Equal(t, "Old", rows[0]["personName"])
	assert.Equal(t, "20210101", rows[1]["date"])
	assert.Equal(t, "Fashion & Retail", rows[1]["industries"])
	assert.Equal(t, "186200.0", toStdNumber(rows[1]["finalWorth"]).String())
	assert.NotContains(t, rows[1], "financialAssets")
	assert.NotContains(t, rows[1], "nested")
	assert.Equal(t, "Elon Musk", rows[2]["personName"])

	assert.Equal(t, []string{filepath.Join(dir, "20200615.json")}, src.Skipped())
}

func TestSnapshotsAssets(t *testing.T) {
	src, err := NewSnapshots(writeSnapshots(t), models.TableAssets, nil)
	require.NoError(t, err)

	rows, err := Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bernard Arnault", rows[0]["personName"])
	assert.Equal(t, "LVMH", rows[0]["companyName"])
	assert.Equal(t, true, rows[0]["interactive"])
	assert.Equal(t, "20210101", rows[0]["date"])
	assert.Equal(t, "CDI", rows[1]["ticker"])
	assert.NotContains(t, rows[1], "numberOfShares")
}

func TestFlattenPersonListArray(t *testing.T) {
	doc := map[string]any{"personList": []any{map[string]any{"personName": "A"}}}
	rows := Flatten(doc, "20220101", models.TableHolders)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0]["personName"])
}

func TestOpenPicksAdapter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("personName\nA\n"), 0o644))
	jsonPath := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"personName":"A"}`), 0o644))

	for _, p := range []string{csvPath, jsonPath} {
		src, err := Open(p, models.TableHolders, nil)
		require.NoError(t, err)
		rows, err := Drain(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, []models.RawRow{{"personName": "A"}}, rows, p)
		require.NoError(t, src.Close())
	}

	src, err := Open(dir, models.TableHolders, nil)
	require.NoError(t, err)
	_, ok := src.(*Snapshots)
	assert.True(t, ok)

	_, err = Open(filepath.Join(dir, "missing.csv"), models.TableHolders, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRowsHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromRows(models.RawRow{"a": 1}).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
