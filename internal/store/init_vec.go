//go:build sqlite_vec && cgo && !purego

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec with the mattn/go-sqlite3 driver as an
	// auto-loadable extension so vec0 virtual tables work on every
	// connection.
	vec.Auto()
}
