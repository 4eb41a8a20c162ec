package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("assets")
	c.RowsIn(5)
	c.RowsOut(3)
	c.RowDropped("schema")
	c.RowDropped("precision")
	c.FieldSignals(2, 0)
	c.FieldSignals(0, 4)
	c.SortSpill(3, 4096)
	c.RowGroups(2)
	c.BytesWritten(1234)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.rowsIn))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rowsOut))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsDropped.WithLabelValues("schema")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsDropped.WithLabelValues("precision")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.fieldsDropped))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.fieldsDefault))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.spillRuns))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.spilledBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowGroups))
	assert.Equal(t, 1234.0, testutil.ToFloat64(c.bytesWritten))
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector("holders")
	b := NewCollector("holders")
	a.RowsIn(10)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rowsIn))
}

func TestStartStage(t *testing.T) {
	c := NewCollector("holders")
	done := c.StartStage("sort")
	first := done()
	second := done()
	assert.Equal(t, first, second)

	assert.Equal(t, 1, testutil.CollectAndCount(c.stageDuration))
	assert.Contains(t, c.Stages(), "sort")
}

func TestWriteTextFile(t *testing.T) {
	c := NewCollector("assets")
	c.RowsIn(7)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, c.WriteTextFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `wealthpack_rows_in_total{table="assets"} 7`))
}
