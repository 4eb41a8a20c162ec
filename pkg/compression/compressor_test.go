package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
)

func TestStreamRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("Bernard Arnault,LVMH,equity,183455400.000\n"), 500)

	for _, name := range Names() {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(name+"/"+level.String(), func(t *testing.T) {
				algo, err := ParseAlgorithm(name)
				require.NoError(t, err)

				var buf bytes.Buffer
				w, err := NewWriter(&buf, algo, level)
				require.NoError(t, err)
				_, err = w.Write(original)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if algo != None {
					assert.Less(t, buf.Len(), len(original))
				}

				r, err := NewReader(&buf, algo)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, original, got)
			})
		}
	}
}

func TestEmptyStream(t *testing.T) {
	for _, algo := range []Algorithm{Zstd, S2, Snappy, Gzip, None} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, algo, Default)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := NewReader(&buf, algo)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Empty(t, got, algo)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" LZ4 ")
	require.NoError(t, err)
	assert.Equal(t, LZ4, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("rar")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewWriter(io.Discard, Algorithm("rar"), Default)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": Fastest, "fastest": Fastest, " Default ": Default, "BEST": Best} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		if in != "" {
			assert.Equal(t, strings.ToLower(strings.TrimSpace(in)), got.String())
		}
	}

	_, err := ParseLevel("max")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
