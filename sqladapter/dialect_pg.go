package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
)

type postgresDialect struct{}

func (postgresDialect) placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresDialect) columnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1;`,
			[]any{table}
	}
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2;`,
		[]any{schema, table}
}

func (postgresDialect) supportsSchemas() bool { return true }

func (postgresDialect) timestampType() string { return "TIMESTAMP" }

func (postgresDialect) searchPath(schema string) string {
	if schema == "" {
		return ""
	}
	return fmt.Sprintf("SET LOCAL search_path = %s", quoteIdent(schema))
}

// lock takes a session-level advisory lock. Advisory locks belong to a
// connection, so one connection is pinned until the lock is released.
func (postgresDialect) lock(ctx context.Context, db *sql.DB, key string) (func(), error) {
	lockID := hashLockKey(key)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
		_ = conn.Close()
	}
	return release, nil
}
