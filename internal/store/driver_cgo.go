//go:build cgo && !purego

package store

import (
	// mattn/go-sqlite3 registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
