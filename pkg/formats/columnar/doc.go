// Package columnar is the compression writer: it streams sorted records
// into a Parquet file laid out by a layout.ColumnPlan.
//
// A file is only ever visible at its target path in complete form. Row
// groups are written to a temporary file in the target's directory; Commit
// writes the footer, syncs and renames it into place. Abort, or any error
// before Commit, removes the temporary file and leaves the target as it
// was.
//
// Besides the schema, the footer carries the plan that produced the file
// under the key-value metadata keys MetaPlan, MetaTable, MetaVersion and
// MetaFingerprint. Inspect reads these back together with the codec and
// encodings of every column chunk.
package columnar
