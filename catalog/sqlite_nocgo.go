//go:build !cgo
// +build !cgo

package catalog

import (
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"
