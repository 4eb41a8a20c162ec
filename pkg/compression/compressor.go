// Package compression wraps the stream codecs used for spill runs.
//
// A spill run is written once, sequentially, and read back once during the
// merge, so only the streaming half of each codec is exposed:
//
//	w, err := compression.NewWriter(f, compression.LZ4, compression.Fastest)
//	...
//	r, err := compression.NewReader(f, compression.LZ4)
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > Gzip.
// Ratio (best to worst): Zstd > Gzip > S2 > Snappy > LZ4.
package compression

import (
	"io"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
)

// Algorithm names a stream codec.
type Algorithm string

const (
	// None writes runs uncompressed
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

var algorithms = map[Algorithm]struct{}{None: {}, Gzip: {}, Snappy: {}, LZ4: {}, Zstd: {}, S2: {}}

// ParseAlgorithm resolves a configured codec name. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return None, nil
	}
	if _, ok := algorithms[a]; !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported spill codec %q (want one of %s)",
			s, strings.Join(Names(), ", "))
	}
	return a, nil
}

// Names lists the supported algorithm names, sorted.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for a := range algorithms {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// Level trades speed for ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseLevel resolves a configured level name. The empty string is Fastest.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fastest":
		return Fastest, nil
	case "default":
		return Default, nil
	case "best":
		return Best, nil
	}
	return 0, errors.Newf(errors.ErrorTypeConfig, "unsupported spill level %q (want fastest, default or best)", s)
}

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// NewWriter returns a compressing writer over dst. Closing it flushes the
// codec's trailer but does not close dst.
func NewWriter(dst io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None, "":
		return nopWriteCloser{dst}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(dst, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "gzip writer")
		}
		return w, nil
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case S2:
		return s2.NewWriter(dst, s2.WriterConcurrency(1)), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "lz4 writer")
		}
		return w, nil
	case Zstd:
		w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd writer")
		}
		return w, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported spill codec %q", algo)
}

// NewReader returns a decompressing reader over src.
func NewReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "gzip reader")
		}
		return r, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Zstd:
		d, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "zstd reader")
		}
		return zstdReadCloser{d}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported spill codec %q", algo)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// zstd.Decoder.Close has no error result.
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
