package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
)

// sqliteDialect locks with an in-process semaphore. SQLite is single-writer
// and its own file locking protects against other processes.
type sqliteDialect struct {
	sem chan struct{}
}

func newSqliteDialect() *sqliteDialect {
	return &sqliteDialect{sem: make(chan struct{}, 1)}
}

func (*sqliteDialect) placeholder(int) string {
	return "?"
}

func (*sqliteDialect) columnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT name FROM pragma_table_info(?);`, []any{table}
	}
	return `SELECT name FROM pragma_table_info(?, ?);`, []any{table, schema}
}

func (*sqliteDialect) supportsSchemas() bool { return false }

// SQLite has no dedicated TIMESTAMP type; DATETIME lets the driver scan
// run_at back into a time.Time.
func (*sqliteDialect) timestampType() string { return "DATETIME" }

func (*sqliteDialect) searchPath(string) string { return "" }

func (d *sqliteDialect) lock(ctx context.Context, _ *sql.DB, _ string) (func(), error) {
	select {
	case d.sem <- struct{}{}:
		return func() { <-d.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire sqlite lock: %w", ctx.Err())
	}
}
