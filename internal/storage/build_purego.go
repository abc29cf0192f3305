//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build. The pure Go driver needs no C toolchain; vector ranking
// reads every embedding and scores it in Go, which is fast enough for a
// catalog of a few thousand sections.
//
//   CGO_ENABLED=0 go build ./cmd/recommender

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
