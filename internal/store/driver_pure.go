//go:build !cgo || purego

package store

import (
	// modernc.org/sqlite registers the pure-Go "sqlite" driver. No vec0
	// extension here; vector search falls back to a brute-force scan.
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"
