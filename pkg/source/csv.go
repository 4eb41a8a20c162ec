package source

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// CSV reads a headed CSV stream. Every cell is kept as a string and empty
// cells become nil.
type CSV struct {
	r      *csv.Reader
	closer io.Closer
	header []string
	line   int
}

// NewCSV reads the header row of r. If r is an io.Closer it is closed by
// Close.
func NewCSV(r io.Reader) (*CSV, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	c := &CSV{r: cr}
	if cl, ok := r.(io.Closer); ok {
		c.closer = cl
	}

	header, err := cr.Read()
	if err == io.EOF {
		return c, nil
	}
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "cannot read csv header")
	}
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if _, dup := seen[name]; dup {
			c.Close()
			return nil, errors.Newf(errors.ErrorTypeSchema, "duplicate csv column %q", name)
		}
		seen[name] = struct{}{}
	}
	c.header = append([]string(nil), header...)
	c.line = 1
	return c, nil
}

// Header returns the column names.
func (c *CSV) Header() []string { return c.header }

func (c *CSV) Next(ctx context.Context) (models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.header == nil {
		return nil, io.EOF
	}
	rec, err := c.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	c.line++
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "malformed csv row").WithDetail("line", c.line)
	}

	row := make(models.RawRow, len(c.header))
	for i, name := range c.header {
		if rec[i] == "" {
			row[name] = nil
			continue
		}
		row[name] = rec[i]
	}
	return row, nil
}

func (c *CSV) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
