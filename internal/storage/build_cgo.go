//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with -tags sqlite_vec. Cosine distance is computed in SQL by the
// sqlite-vec extension, so catalog queries rank every embedding without
// loading vectors into Go.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./cmd/recommender

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
