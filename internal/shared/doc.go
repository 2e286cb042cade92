// Package shared holds utilities used across the codebase that do not
// belong to any single domain layer.
//
// The testutil subpackage provides slog capture helpers for asserting on
// structured log output in tests. Nothing here may import other internal
// packages; shared sits at the bottom of the dependency graph.
package shared
