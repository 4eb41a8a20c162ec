package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// holderFields are copied from each person record of a snapshot.
var holderFields = []string{
	"personName", "lastName", "birthDate", "gender", "countryOfCitizenship",
	"city", "state", "finalWorth", "estWorthPrev", "archivedWorth",
	"privateAssetsWorth", "source", "industries",
}

// assetFields are copied from each entry of a person's financialAssets.
var assetFields = []string{
	"numberOfShares", "sharePrice", "exchangeRate", "ticker", "companyName",
	"currencyCode", "exchange", "interactive",
}

// Snapshots flattens a directory of daily list snapshots (*.json, named
// YYYYMMDD...) into holder or asset rows. Files are visited in name
// order. A file that does not parse is skipped with a warning, the way a
// partially scraped archive is expected to contain junk.
type Snapshots struct {
	table   models.Table
	files   []string
	log     *zap.Logger
	pending []models.RawRow
	skipped []string
}

// NewSnapshots lists the snapshot files in dir.
func NewSnapshots(dir string, table models.Table, log *zap.Logger) (*Snapshots, error) {
	if table != models.TableHolders && table != models.TableAssets {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown table %q", table)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot list snapshots").WithDetail("dir", dir)
	}
	sort.Strings(files)
	if log == nil {
		log = zap.NewNop()
	}
	return &Snapshots{table: table, files: files, log: log}, nil
}

// Skipped lists the files that could not be parsed so far.
func (s *Snapshots) Skipped() []string { return s.skipped }

func (s *Snapshots) Next(ctx context.Context) (models.RawRow, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.files) == 0 {
			return nil, io.EOF
		}
		path := s.files[0]
		s.files = s.files[1:]

		rows, err := s.load(path)
		if err != nil {
			s.skipped = append(s.skipped, path)
			s.log.Warn("skipping unreadable snapshot", zap.String("file", path), zap.Error(err))
			continue
		}
		s.pending = rows
	}
	row := s.pending[0]
	s.pending = s.pending[1:]
	return row, nil
}

func (s *Snapshots) Close() error {
	s.files, s.pending = nil, nil
	return nil
}

func (s *Snapshots) load(path string) ([]models.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return Flatten(doc, snapshotDate(path), s.table), nil
}

// snapshotDate is the first eight characters of the file's stem.
func snapshotDate(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(stem) > 8 {
		stem = stem[:8]
	}
	return stem
}

// Flatten turns one decoded snapshot into rows of table. People are read
// from personList.personsLists, personList or data, whichever is present
// first.
func Flatten(doc map[string]any, date string, table models.Table) []models.RawRow {
	var rows []models.RawRow
	for _, p := range people(doc) {
		person, ok := p.(map[string]any)
		if !ok {
			continue
		}
		switch table {
		case models.TableHolders:
			row := models.RawRow{"date": date}
			copyFields(row, person, holderFields)
			rows = append(rows, row)
		case models.TableAssets:
			assets, _ := person["financialAssets"].([]any)
			for _, a := range assets {
				asset, ok := a.(map[string]any)
				if !ok {
					continue
				}
				row := models.RawRow{"date": date, "personName": person["personName"]}
				copyFields(row, asset, assetFields)
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func people(doc map[string]any) []any {
	if pl, ok := doc["personList"].(map[string]any); ok {
		if list, ok := pl["personsLists"].([]any); ok && len(list) > 0 {
			return list
		}
	}
	if list, ok := doc["personList"].([]any); ok && len(list) > 0 {
		return list
	}
	list, _ := doc["data"].([]any)
	return list
}

func copyFields(dst models.RawRow, src map[string]any, fields []string) {
	for _, f := range fields {
		if v, ok := src[f]; ok {
			dst[f] = flatValue(v)
		}
	}
}

// flatValue joins list values such as industries into one cell.
func flatValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			parts = append(parts, s)
		} else if item != nil {
			parts = append(parts, fmt.Sprint(item))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, ", ")
}
