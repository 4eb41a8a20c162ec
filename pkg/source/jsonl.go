package source

import (
	"context"
	"io"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/json"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// JSONLines reads a stream of JSON objects, one row each. Numbers stay
// json.Number so decimals never pass through float64.
type JSONLines struct {
	dec    *json.Decoder
	closer io.Closer
	n      int
}

// NewJSONLines decodes objects from r. If r is an io.Closer it is closed
// by Close.
func NewJSONLines(r io.Reader) *JSONLines {
	j := &JSONLines{dec: json.NewDecoder(r)}
	if cl, ok := r.(io.Closer); ok {
		j.closer = cl
	}
	return j
}

func (j *JSONLines) Next(ctx context.Context) (models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row map[string]any
	if err := j.dec.Decode(&row); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "malformed json row").WithDetail("row", j.n)
	}
	j.n++
	if row == nil {
		return nil, errors.New(errors.ErrorTypeSchema, "json row is not an object").WithDetail("row", j.n-1)
	}
	return models.RawRow(row), nil
}

func (j *JSONLines) Close() error {
	if j.closer == nil {
		return nil
	}
	err := j.closer.Close()
	j.closer = nil
	return err
}
