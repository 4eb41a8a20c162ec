// Package testutil provides shared fixtures for wealthpack tests.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ScenarioSchema is a small five-column table with every sort role bound:
// person (required), company, type, ts and a decimal value.
func ScenarioSchema(t *testing.T) *models.Schema {
	t.Helper()
	s, err := models.NewSchema("scenario", []models.FieldSpec{
		{Name: "person", Kind: models.KindString, Required: true},
		{Name: "company", Kind: models.KindString},
		{Name: "type", Kind: models.KindString},
		{Name: "ts", Kind: models.KindTimestamp},
		{Name: "value", Kind: models.KindDecimal},
	}, models.SortRoles{Person: "person", Company: "company", Type: "type", Timestamp: "ts"})
	require.NoError(t, err)
	return s
}

// ScenarioRows returns three unsorted rows for ScenarioSchema. Sorted, they
// come out as (A,X,2020-01-01), (A,X,2020-01-02), (B,Y,2020-01-01).
func ScenarioRows() []models.RawRow {
	return []models.RawRow{
		{"person": "B", "company": "Y", "type": "equity", "ts": "2020-01-01T00:00:00Z", "value": "7"},
		{"person": "A", "company": "X", "type": "equity", "ts": "2020-01-02T00:00:00Z", "value": "100"},
		{"person": "A", "company": "X", "type": "equity", "ts": "2020-01-01T00:00:00Z", "value": "123.450"},
	}
}

// RandomRows generates n reproducible ScenarioSchema rows with heavy key
// repetition. About a fifth of them have no company.
func RandomRows(seed int64, n int) []models.RawRow {
	rng := rand.New(rand.NewSource(seed))
	types := []string{"equity", "option", "cash"}
	rows := make([]models.RawRow, 0, n)
	for i := 0; i < n; i++ {
		row := models.RawRow{
			"person": fmt.Sprintf("p%02d", rng.Intn(30)),
			"type":   types[rng.Intn(len(types))],
			"ts":     int64(1577836800 + 86400*rng.Intn(50)),
			"value":  fmt.Sprintf("%d.%02d", rng.Intn(100000), rng.Intn(100)),
		}
		if rng.Intn(5) > 0 {
			row["company"] = fmt.Sprintf("c%d", rng.Intn(8))
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// DirEntries lists the names in dir, which must exist.
func DirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
