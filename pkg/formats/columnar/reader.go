package columnar

import (
	"context"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
)

// ChunkInfo describes one column chunk of one row group.
type ChunkInfo struct {
	Column    string   `json:"column"`
	Codec     string   `json:"codec"`
	Encodings []string `json:"encodings"`
	// Dictionary reports whether the chunk starts with a dictionary page.
	Dictionary bool `json:"dictionary"`
}

// RowGroupInfo describes one row group.
type RowGroupInfo struct {
	Rows   int64       `json:"rows"`
	Chunks []ChunkInfo `json:"chunks"`
}

// FileInfo is what Inspect learns from a file's footer.
type FileInfo struct {
	Path        string             `json:"path"`
	Rows        int64              `json:"rows"`
	CreatedBy   string             `json:"created_by"`
	Table       string             `json:"table"`
	Version     string             `json:"version"`
	Fingerprint string             `json:"plan_fingerprint"`
	Plan        *layout.ColumnPlan `json:"plan,omitempty"`
	RowGroups   []RowGroupInfo     `json:"row_groups"`
}

// Inspect reads the footer of a Parquet file.
func Inspect(path string) (*FileInfo, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "open parquet file").WithDetail("path", path)
	}
	defer rdr.Close()

	md := rdr.MetaData()
	kv := md.KeyValueMetadata()
	info := &FileInfo{
		Path:      path,
		Rows:      rdr.NumRows(),
		CreatedBy: md.GetCreatedBy(),
	}
	if v := kv.FindValue(MetaTable); v != nil {
		info.Table = *v
	}
	if v := kv.FindValue(MetaVersion); v != nil {
		info.Version = *v
	}
	if v := kv.FindValue(MetaFingerprint); v != nil {
		info.Fingerprint = *v
	}
	if v := kv.FindValue(MetaPlan); v != nil {
		plan, err := layout.ParsePlan([]byte(*v))
		if err != nil {
			return nil, err
		}
		info.Plan = plan
	}

	for g := 0; g < rdr.NumRowGroups(); g++ {
		rg := rdr.RowGroup(g)
		rgmd := rg.MetaData()
		group := RowGroupInfo{Rows: rgmd.NumRows()}
		for c := 0; c < rgmd.NumColumns(); c++ {
			cc, err := rgmd.ColumnChunk(c)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "read column chunk metadata")
			}
			chunk := ChunkInfo{
				Column:     cc.PathInSchema().String(),
				Codec:      cc.Compression().String(),
				Dictionary: cc.HasDictionaryPage(),
			}
			for _, e := range cc.Encodings() {
				chunk.Encodings = append(chunk.Encodings, e.String())
			}
			group.Chunks = append(group.Chunks, chunk)
		}
		info.RowGroups = append(info.RowGroups, group)
	}
	return info, nil
}

// ReadRows decodes a whole file back to text, one map per row keyed by
// column name. Decimals render at their column scale and nulls are absent
// from the map. It loads the file into memory and is meant for
// verification.
func ReadRows(ctx context.Context, path string) ([]map[string]string, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "open parquet file").WithDetail("path", path)
	}
	defer rdr.Close()

	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{Parallel: true, BatchSize: 64 << 10}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "create arrow reader")
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "read table")
	}
	defer tbl.Release()

	rows := make([]map[string]string, tbl.NumRows())
	for i := range rows {
		rows[i] = make(map[string]string, tbl.NumCols())
	}
	for c := 0; c < int(tbl.NumCols()); c++ {
		col := tbl.Column(c)
		name := col.Name()
		offset := 0
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				if chunk.IsNull(j) {
					continue
				}
				s, err := valueText(chunk, j)
				if err != nil {
					return nil, err
				}
				rows[offset+j][name] = s
			}
			offset += chunk.Len()
		}
	}
	return rows, nil
}

func valueText(arr arrow.Array, i int) (string, error) {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), nil
	case *array.Decimal128:
		dt := a.DataType().(*arrow.Decimal128Type)
		return fixedpoint.Codec{Scale: dt.Scale, Precision: dt.Precision}.Decode(a.Value(i)), nil
	}
	return "", errors.Newf(errors.ErrorTypeInternal, "unsupported column type %s", arr.DataType())
}
