package sqladapter

import (
	"context"
	"database/sql"
)

// dialect holds the SQL that differs between databases.
type dialect interface {
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder(n int) string

	// columnsQuery lists the column names of the bookkeeping table. It
	// returns no rows when the table does not exist.
	columnsQuery(schema, table string) (string, []any)

	supportsSchemas() bool
	timestampType() string

	// searchPath returns the statement run at the start of every migration
	// transaction, or "" for none.
	searchPath(schema string) string

	// lock takes a store-wide lock named key.
	lock(ctx context.Context, db *sql.DB, key string) (func(), error)
}

// hashLockKey produces a stable int64 hash from a string key for use with
// pg_advisory_lock. Uses FNV-1a.
func hashLockKey(key string) int64 {
	var h uint64 = 14695981039346656037 // FNV offset basis
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211 // FNV prime
	}
	return int64(h & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // advisory lock keys are signed
}
