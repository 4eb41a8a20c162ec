package config

import (
	"runtime"

	"github.com/ajitpratap0/wealthpack/pkg/compression"
	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/fixedpoint"
	"github.com/ajitpratap0/wealthpack/pkg/layout"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
)

// Config is the complete configuration of one conversion run.
type Config struct {
	// CompressionAlgorithm is the compression tier: fast, balanced or max-ratio
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	// Codec overrides the tier's Parquet codec
	Codec string `yaml:"codec,omitempty" json:"codec,omitempty"`
	// CompressionLevel overrides the tier's level; 0 keeps it
	CompressionLevel int `yaml:"compression_level,omitempty" json:"compression_level,omitempty"`
	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int `yaml:"row_group_size" json:"row_group_size"`
	// MaxDecimalScale bounds the fractional digits of any decimal value
	MaxDecimalScale int `yaml:"max_decimal_scale" json:"max_decimal_scale"`
	// DictionaryThreshold is the distinct/non-null ratio below which a
	// column is dictionary encoded
	DictionaryThreshold float64 `yaml:"dictionary_threshold" json:"dictionary_threshold"`
	// Strict aborts on the first bad record instead of dropping it
	Strict bool `yaml:"strict" json:"strict"`
	// DistinctCap bounds exact distinct counting per column
	DistinctCap int `yaml:"distinct_cap" json:"distinct_cap"`
	// Overwrite allows replacing an existing output file
	Overwrite bool `yaml:"overwrite" json:"overwrite"`
	// Workers is the number of normalization workers
	Workers int `yaml:"workers" json:"workers"`
	// BatchSize is the number of raw rows handed to a worker at once
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	Sort          SortConfig          `yaml:"sort" json:"sort"`
	Logging       logger.Config       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SortConfig tunes the external merge sort.
type SortConfig struct {
	// ChunkRows is the number of records sorted in memory per run
	ChunkRows int `yaml:"chunk_rows" json:"chunk_rows"`
	// TempDir holds spill runs; empty means the system temp directory
	TempDir string `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`
	// SpillCodec compresses spill runs (none, lz4, s2, snappy, zstd, gzip)
	SpillCodec string `yaml:"spill_codec" json:"spill_codec"`
	// SpillLevel is the spill codec effort: fastest, default or best
	SpillLevel string `yaml:"spill_level" json:"spill_level"`
	// MaxSpillBytes caps total spill size; 0 means only free disk space
	MaxSpillBytes int64 `yaml:"max_spill_bytes" json:"max_spill_bytes"`
	// Workers is the number of chunks sorted concurrently
	Workers int `yaml:"workers" json:"workers"`
}

// ObservabilityConfig switches the optional metrics and tracing output.
type ObservabilityConfig struct {
	// EnableTracing exports pipeline spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// MetricsFile, when set, receives the run's metrics in text format
	MetricsFile string `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// Default returns the configuration the CLI starts from.
func Default() *Config {
	return &Config{
		CompressionAlgorithm: string(layout.TierBalanced),
		RowGroupSize:         122_880,
		MaxDecimalScale:      12,
		DictionaryThreshold:  0.05,
		DistinctCap:          layout.DefaultDistinctCap,
		Workers:              runtime.NumCPU(),
		BatchSize:            4096,
		Sort: SortConfig{
			ChunkRows:  250_000,
			SpillCodec: string(compression.LZ4),
			SpillLevel: compression.Fastest.String(),
			Workers:    runtime.NumCPU(),
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks every field a run depends on.
func (c *Config) Validate() error {
	if _, _, err := layout.ResolveCodec(layout.Tier(c.CompressionAlgorithm), c.Codec, c.CompressionLevel); err != nil {
		return err
	}
	if c.RowGroupSize <= 0 {
		return configErr("row_group_size must be positive")
	}
	if c.MaxDecimalScale <= 0 || c.MaxDecimalScale >= fixedpoint.MaxPrecision {
		return configErr("max_decimal_scale must be between 1 and 37")
	}
	if c.DictionaryThreshold <= 0 || c.DictionaryThreshold >= 1 {
		return configErr("dictionary_threshold must be in (0, 1)")
	}
	if c.DistinctCap < 0 {
		return configErr("distinct_cap cannot be negative")
	}
	if c.Workers < 0 || c.Sort.Workers < 0 {
		return configErr("workers cannot be negative")
	}
	if c.BatchSize <= 0 {
		return configErr("batch_size must be positive")
	}
	if c.Sort.ChunkRows <= 0 {
		return configErr("sort.chunk_rows must be positive")
	}
	if c.Sort.MaxSpillBytes < 0 {
		return configErr("sort.max_spill_bytes cannot be negative")
	}
	if _, err := compression.ParseAlgorithm(c.Sort.SpillCodec); err != nil {
		return err
	}
	if _, err := compression.ParseLevel(c.Sort.SpillLevel); err != nil {
		return err
	}
	return nil
}

// GetWorkers returns the normalization worker count, defaulting to the
// number of CPUs.
func (c *Config) GetWorkers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// LayoutOptions projects the optimizer's tunables out of the config.
func (c *Config) LayoutOptions(table string) layout.Options {
	return layout.Options{
		Table:               table,
		RowGroupSize:        c.RowGroupSize,
		DictionaryThreshold: c.DictionaryThreshold,
		Tier:                layout.Tier(c.CompressionAlgorithm),
		Codec:               c.Codec,
		CompressionLevel:    c.CompressionLevel,
	}
}

// Limits are the per-value decimal limits.
func (c *Config) Limits() fixedpoint.Limits {
	return fixedpoint.Limits{MaxScale: int32(c.MaxDecimalScale)}
}

func configErr(msg string) error {
	return errors.New(errors.ErrorTypeConfig, msg)
}
