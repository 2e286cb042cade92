// Package transform implements the tabular transformation layer shared by all
// report services: snapshot filtering, frequency normalization, ranking,
// pivoting with derived ratios, dual-axis magnitude splitting, choropleth
// shading and Brazilian-locale number formatting.
//
// # Core Components
//
// The package operates on a small column-oriented data model (Table, Row,
// Cell, Series) where the zero Cell value means "missing". Missing values are
// first-class: aggregations skip them, rankings exclude them and derived
// computations are silently omitted when an operand is absent.
//
//   - table.go: Cell, Row, Table and Series data model
//   - meta.go: per-variable display and ranking metadata
//   - snapshot.go: latest-date filtering of reference tables
//   - resample.go: mean resampling and forward-fill alignment
//   - ranking.go: top/bottom buckets and rank positions
//   - pivot.go: registry filters, wide pivots and derived ratio columns
//   - axis.go: order-of-magnitude grouping for dual-axis charts
//   - shade.go: min-max color shading for choropleth maps
//   - format.go: pt-BR numeric, currency and percentage rendering
//   - stats.go: descriptive statistics and correlation
//
// # Error Model
//
// Operations distinguish three outcomes: an empty input produces an empty
// output and no error, a structurally missing column produces a
// *MissingColumnError, and per-row computation failures (zero denominators,
// unparseable values) drop the affected value without failing the call.
package transform
