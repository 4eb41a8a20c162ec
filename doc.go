// Package wealthpack converts wealth-tracking records into compact Parquet
// files without losing a single decimal digit.
//
// Holder rows (one per person per snapshot date) and asset rows (one per
// holding per snapshot date) are read from CSV, JSON-lines or a directory of
// daily JSON snapshots, normalized against a fixed schema, sorted by
// (person, company, type, timestamp) and written with a per-column layout
// chosen from single-pass statistics.
//
// # Quick Start
//
//	wealthpack convert --table assets --input raw_assets.csv --output assets.parquet
//	wealthpack plan --table holders --input snapshots/
//	wealthpack inspect assets.parquet --rows 5
//
// # Packages
//
//   - pkg/models: typed values, records and the built-in table schemas
//   - pkg/schema: the normalizer from raw rows to typed records
//   - pkg/fixedpoint: exact decimal parsing, scale tracking and DECIMAL encoding
//   - pkg/extsort: the external merge sort with compressed spill runs
//   - pkg/layout: column statistics and the layout optimizer
//   - pkg/formats/columnar: the atomic Parquet writer and reader
//   - internal/pipeline: the convert and plan runs that tie them together
//
// # Configuration
//
// Settings come from built-in defaults, an optional YAML file, WEALTHPACK_*
// environment variables and command-line flags, in increasing precedence.
// See pkg/config.
package wealthpack
