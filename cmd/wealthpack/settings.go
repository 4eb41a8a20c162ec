package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/wealthpack/pkg/config"
	"github.com/ajitpratap0/wealthpack/pkg/logger"
	"github.com/ajitpratap0/wealthpack/pkg/observability"
)

const envPrefix = "WEALTHPACK"

// setting maps one config key to its flag. The environment variable is
// WEALTHPACK_ followed by the upper-cased key with dots as underscores.
type setting struct {
	key  string
	flag string
	set  func(v *viper.Viper, key string, cfg *config.Config)
}

var settings = []setting{
	{"compression_algorithm", "compression", func(v *viper.Viper, k string, c *config.Config) { c.CompressionAlgorithm = v.GetString(k) }},
	{"codec", "codec", func(v *viper.Viper, k string, c *config.Config) { c.Codec = v.GetString(k) }},
	{"compression_level", "compression-level", func(v *viper.Viper, k string, c *config.Config) { c.CompressionLevel = v.GetInt(k) }},
	{"row_group_size", "row-group-size", func(v *viper.Viper, k string, c *config.Config) { c.RowGroupSize = v.GetInt(k) }},
	{"max_decimal_scale", "max-decimal-scale", func(v *viper.Viper, k string, c *config.Config) { c.MaxDecimalScale = v.GetInt(k) }},
	{"dictionary_threshold", "dictionary-threshold", func(v *viper.Viper, k string, c *config.Config) { c.DictionaryThreshold = v.GetFloat64(k) }},
	{"strict", "strict", func(v *viper.Viper, k string, c *config.Config) { c.Strict = v.GetBool(k) }},
	{"distinct_cap", "distinct-cap", func(v *viper.Viper, k string, c *config.Config) { c.DistinctCap = v.GetInt(k) }},
	{"overwrite", "overwrite", func(v *viper.Viper, k string, c *config.Config) { c.Overwrite = v.GetBool(k) }},
	{"workers", "workers", func(v *viper.Viper, k string, c *config.Config) { c.Workers = v.GetInt(k) }},
	{"batch_size", "batch-size", func(v *viper.Viper, k string, c *config.Config) { c.BatchSize = v.GetInt(k) }},
	{"sort.chunk_rows", "sort-chunk-rows", func(v *viper.Viper, k string, c *config.Config) { c.Sort.ChunkRows = v.GetInt(k) }},
	{"sort.temp_dir", "sort-temp-dir", func(v *viper.Viper, k string, c *config.Config) { c.Sort.TempDir = v.GetString(k) }},
	{"sort.spill_codec", "spill-codec", func(v *viper.Viper, k string, c *config.Config) { c.Sort.SpillCodec = v.GetString(k) }},
	{"sort.spill_level", "spill-level", func(v *viper.Viper, k string, c *config.Config) { c.Sort.SpillLevel = v.GetString(k) }},
	{"sort.max_spill_bytes", "max-spill-bytes", func(v *viper.Viper, k string, c *config.Config) { c.Sort.MaxSpillBytes = v.GetInt64(k) }},
	{"sort.workers", "sort-workers", func(v *viper.Viper, k string, c *config.Config) { c.Sort.Workers = v.GetInt(k) }},
	{"logging.level", "log-level", func(v *viper.Viper, k string, c *config.Config) { c.Logging.Level = v.GetString(k) }},
	{"observability.enable_tracing", "trace", func(v *viper.Viper, k string, c *config.Config) { c.Observability.EnableTracing = v.GetBool(k) }},
	{"observability.metrics_file", "metrics-file", func(v *viper.Viper, k string, c *config.Config) { c.Observability.MetricsFile = v.GetString(k) }},
}

// addTuningFlags registers the flags shared by convert and plan. Defaults
// are left empty so an unset flag never masks the config file.
func addTuningFlags(f *pflag.FlagSet) {
	f.String("compression", "", "Compression tier: fast, balanced or max-ratio")
	f.String("codec", "", "Parquet codec override: snappy, gzip, lz4, zstd, brotli or uncompressed")
	f.Int("compression-level", 0, "Codec level override (0 keeps the tier's level)")
	f.Int("row-group-size", 0, "Maximum rows per row group")
	f.Int("max-decimal-scale", 0, "Maximum fractional digits of any decimal value")
	f.Float64("dictionary-threshold", 0, "Distinct/non-null ratio below which a column is dictionary encoded")
	f.Bool("strict", false, "Abort on the first rejected row instead of dropping it")
	f.Int("distinct-cap", 0, "Exact distinct counting limit per column")
	f.Int("workers", 0, "Normalization workers")
	f.Int("batch-size", 0, "Rows handed to a worker at once")
	f.Int("sort-chunk-rows", 0, "Rows sorted in memory before spilling a run")
	f.String("sort-temp-dir", "", "Directory for spill runs")
	f.String("spill-codec", "", "Spill run compression: none, lz4, s2, snappy, zstd or gzip")
	f.String("spill-level", "", "Spill run compression effort: fastest, default or best")
	f.Int64("max-spill-bytes", 0, "Cap on total spill size (0 = free disk space only)")
	f.Int("sort-workers", 0, "Chunks sorted and spilled concurrently")
}

// loadConfig layers defaults, the config file, WEALTHPACK_* variables and
// explicitly set flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, s := range settings {
		if f := cmd.Flags().Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, err
			}
		}
		if v.IsSet(s.key) {
			s.set(v, s.key, cfg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and installs logging and tracing. The
// returned cleanup flushes both.
func setup(cmd *cobra.Command) (*config.Config, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, func() {}, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, func() {}, err
	}
	cleanup := func() { _ = logger.Sync() }

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultConfig()
		tc.ServiceVersion = version
		tc.Writer = cmd.ErrOrStderr()
		shutdown, err := observability.Init(cmd.Context(), tc)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			_ = shutdown(context.Background())
			_ = logger.Sync()
		}
	}
	return cfg, cleanup, nil
}
