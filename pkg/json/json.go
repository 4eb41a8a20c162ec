// Package json wraps goccy/go-json with the settings wealthpack uses
// everywhere: numbers decode as json.Number so decimal text survives, HTML
// escaping is off, and line-delimited output reuses pooled buffers.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is the literal text of a decoded JSON number.
type Number = gojson.Number

// Decoder is a streaming JSON decoder.
type Decoder = gojson.Decoder

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// NewDecoder returns a streaming decoder that keeps numbers as Number.
func NewDecoder(r io.Reader) *Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// LinesWriter writes one compact JSON value per line.
type LinesWriter struct {
	w     io.Writer
	lines int
}

func NewLinesWriter(w io.Writer) *LinesWriter {
	return &LinesWriter{w: w}
}

// Write encodes v and its trailing newline with a single write to the
// underlying writer.
func (lw *LinesWriter) Write(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if _, err := lw.w.Write(buf.Bytes()); err != nil {
		return err
	}
	lw.lines++
	return nil
}

// Lines reports how many values have been written.
func (lw *LinesWriter) Lines() int {
	return lw.lines
}
