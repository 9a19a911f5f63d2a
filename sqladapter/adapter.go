// Package sqladapter implements a dagrator.Adapter over database/sql for
// PostgreSQL and SQLite.
//
// Applied migrations are recorded in a bookkeeping table (SchemaTable, by
// default "_dagrator") holding the migration ID, its description, an MD5
// checksum and the time it ran. Every migration runs in its own transaction
// together with its bookkeeping row, and runs against the same table are
// serialized with a store lock: a PostgreSQL advisory lock, or an in-process
// lock for SQLite.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator"
)

// Migration is a migration the SQL adapter can run. Up and Down receive the
// transaction the bookkeeping row is written in.
type Migration interface {
	dagrator.Migration
	Up(ctx context.Context, tx *sql.Tx) error
	Down(ctx context.Context, tx *sql.Tx) error
}

// Checksummer is implemented by migrations whose content can change after
// they are applied, such as SQL files. The checksum is stored on apply and
// compared by ValidateChecksums.
type Checksummer interface {
	Checksum() string
}

// Config holds the adapter settings.
type Config struct {
	// Driver is the database dialect, "pg" or "sqlite3".
	Driver string

	// SchemaTable is the name of the bookkeeping table. For PostgreSQL it may
	// be qualified as "schema.table"; the schema is created if missing.
	SchemaTable string

	// CurrentSchema is the PostgreSQL schema used for the bookkeeping table
	// when SchemaTable is not qualified, and set as search_path while
	// migrations run.
	CurrentSchema string
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	Driver:      "pg",
	SchemaTable: "_dagrator",
}

// Adapter stores applied migrations in a SQL table.
type Adapter struct {
	cfg     Config
	db      *sql.DB
	dialect dialect
	schema  string
	table   string
}

var (
	_ dagrator.TxAdapter[Migration] = (*Adapter)(nil)
	_ dagrator.Locker               = (*Adapter)(nil)
)

// New creates an Adapter for the configured driver on db.
func New(cfg Config, db *sql.DB) (*Adapter, error) {
	if cfg.SchemaTable == "" {
		cfg.SchemaTable = DefaultConfig.SchemaTable
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultConfig.Driver
	}

	var d dialect
	switch strings.ToLower(cfg.Driver) {
	case "pg", "postgres", "pgx":
		d = postgresDialect{}
	case "sqlite3", "sqlite":
		d = newSqliteDialect()
	default:
		return nil, fmt.Errorf("db driver '%s' not supported. Must be one of: sqlite3 or pg", cfg.Driver)
	}

	schema, table := "", cfg.SchemaTable
	if i := strings.Index(cfg.SchemaTable, "."); i >= 0 {
		schema, table = cfg.SchemaTable[:i], cfg.SchemaTable[i+1:]
	} else if cfg.CurrentSchema != "" && d.supportsSchemas() {
		schema = cfg.CurrentSchema
	}
	if table == "" {
		return nil, fmt.Errorf("invalid schema table %q", cfg.SchemaTable)
	}

	return &Adapter{
		cfg:     cfg,
		db:      db,
		dialect: d,
		schema:  schema,
		table:   table,
	}, nil
}

// DB returns the underlying database handle.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// QuotedSchemaTable returns the bookkeeping table name quoted for use in SQL.
func (a *Adapter) QuotedSchemaTable() string {
	if a.schema == "" {
		return quoteIdent(a.table)
	}
	return quoteIdent(a.schema) + "." + quoteIdent(a.table)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (a *Adapter) columns(ctx context.Context) ([]string, error) {
	query, args := a.dialect.columnsQuery(a.schema, a.table)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// HasTable reports whether the bookkeeping table exists.
func (a *Adapter) HasTable(ctx context.Context) (bool, error) {
	columns, err := a.columns(ctx)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", a.cfg.SchemaTable, err)
	}
	return len(columns) > 0, nil
}

// Helper function to check for a column name (case insensitive).
func hasColumn(columns []string, name string) bool {
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// EnsureTable creates the bookkeeping table if it does not exist and adds any
// column missing from a table created by an older version.
func (a *Adapter) EnsureTable(ctx context.Context) error {
	columns, err := a.columns(ctx)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", a.cfg.SchemaTable, err)
	}

	qt := a.QuotedSchemaTable()
	var queries []string
	// If no columns are returned, assume the table does not exist.
	if len(columns) == 0 {
		if a.schema != "" && a.dialect.supportsSchemas() {
			queries = append(queries, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, quoteIdent(a.schema)))
		}
		queries = append(queries, fmt.Sprintf(`CREATE TABLE %s (id TEXT PRIMARY KEY);`, qt))
	}

	for _, col := range []struct{ name, typ string }{
		{"description", "TEXT"},
		{"md5", "TEXT"},
		{"run_at", a.dialect.timestampType()},
	} {
		if !hasColumn(columns, col.name) {
			queries = append(queries, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s;`, qt, col.name, col.typ))
		}
	}

	for _, q := range queries {
		if _, err := a.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure %s: %w", a.cfg.SchemaTable, err)
		}
	}
	return nil
}

// DropTable removes the bookkeeping table. The migrated schema is left alone.
func (a *Adapter) DropTable(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, a.QuotedSchemaTable())); err != nil {
		return fmt.Errorf("drop %s: %w", a.cfg.SchemaTable, err)
	}
	return nil
}

// AppliedMigrations implements dagrator.Adapter. A missing bookkeeping table
// means nothing is applied.
func (a *Adapter) AppliedMigrations(ctx context.Context) (dagrator.IDSet, error) {
	records, err := a.Records(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(dagrator.IDSet, len(records))
	for _, r := range records {
		applied.Add(r.ID)
	}
	return applied, nil
}

// Record is one row of the bookkeeping table.
type Record struct {
	ID          uuid.UUID
	Description string
	Checksum    string
	RunAt       time.Time
}

// Records returns the bookkeeping rows ordered by ID.
func (a *Adapter) Records(ctx context.Context) ([]Record, error) {
	ok, err := a.HasTable(ctx)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
      SELECT id, description, md5, run_at
      FROM %s
      ORDER BY id;`, a.QuotedSchemaTable()))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.cfg.SchemaTable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rawID     string
			desc, sum sql.NullString
			runAt     sql.NullTime
		)
		if err := rows.Scan(&rawID, &desc, &sum, &runAt); err != nil {
			return nil, fmt.Errorf("read %s: %w", a.cfg.SchemaTable, err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid migration id %q in %s: %w", rawID, a.cfg.SchemaTable, err)
		}
		records = append(records, Record{
			ID:          id,
			Description: desc.String,
			Checksum:    sum.String,
			RunAt:       runAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", a.cfg.SchemaTable, err)
	}
	return records, nil
}

// ValidateChecksums compares the checksum recorded for every applied
// migration against its current checksum. Migrations without a checksum, and
// rows recorded without one, are skipped.
func (a *Adapter) ValidateChecksums(ctx context.Context, migrations []Migration) error {
	records, err := a.Records(ctx)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]Migration, len(migrations))
	for _, m := range migrations {
		byID[m.ID()] = m
	}
	for _, r := range records {
		m, ok := byID[r.ID]
		if !ok || r.Checksum == "" {
			continue
		}
		cs, ok := m.(Checksummer)
		if !ok || cs.Checksum() == "" {
			continue
		}
		if cs.Checksum() != r.Checksum {
			return &ChecksumError{ID: r.ID, Stored: r.Checksum, Current: cs.Checksum()}
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *Adapter) recordApplied(ctx context.Context, ex execer, m Migration) error {
	var sum string
	if cs, ok := m.(Checksummer); ok {
		sum = cs.Checksum()
	}
	d := a.dialect
	query := fmt.Sprintf(`
      INSERT INTO %s (id, description, md5, run_at)
      VALUES (%s, %s, %s, %s);`,
		a.QuotedSchemaTable(), d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4))
	_, err := ex.ExecContext(ctx, query, m.ID().String(), m.Description(), sum, time.Now().UTC())
	return err
}

func (a *Adapter) recordReverted(ctx context.Context, ex execer, m Migration) error {
	query := fmt.Sprintf(`
      DELETE FROM %s
      WHERE id = %s;`, a.QuotedSchemaTable(), a.dialect.placeholder(1))
	res, err := ex.ExecContext(ctx, query, m.ID().String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("migration %s is not recorded in %s", m.ID(), a.cfg.SchemaTable)
	}
	return nil
}

// Apply implements dagrator.Adapter by running m.Up in its own transaction.
func (a *Adapter) Apply(ctx context.Context, m Migration) error {
	return a.inTx(ctx, func(tx *sql.Tx) error { return m.Up(ctx, tx) })
}

// Revert implements dagrator.Adapter by running m.Down in its own transaction.
func (a *Adapter) Revert(ctx context.Context, m Migration) error {
	return a.inTx(ctx, func(tx *sql.Tx) error { return m.Down(ctx, tx) })
}

// RecordApplied implements dagrator.Adapter.
func (a *Adapter) RecordApplied(ctx context.Context, m Migration) error {
	return a.recordApplied(ctx, a.db, m)
}

// RecordReverted implements dagrator.Adapter.
func (a *Adapter) RecordReverted(ctx context.Context, m Migration) error {
	return a.recordReverted(ctx, a.db, m)
}

func (a *Adapter) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if q := a.dialect.searchPath(a.cfg.CurrentSchema); q != "" {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set search_path: %w", err)
		}
	}
	return tx, nil
}

func (a *Adapter) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := a.beginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Begin implements dagrator.TxAdapter.
func (a *Adapter) Begin(ctx context.Context) (dagrator.Tx[Migration], error) {
	tx, err := a.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{adapter: a, tx: tx}, nil
}

// Lock implements dagrator.Locker.
func (a *Adapter) Lock(ctx context.Context) (func(), error) {
	return a.dialect.lock(ctx, a.db, "dagrator:"+a.cfg.SchemaTable)
}

// Tx runs one migration and its bookkeeping row in a single transaction.
type Tx struct {
	adapter *Adapter
	tx      *sql.Tx
}

func (t *Tx) Apply(ctx context.Context, m Migration) error {
	return m.Up(ctx, t.tx)
}

func (t *Tx) Revert(ctx context.Context, m Migration) error {
	return m.Down(ctx, t.tx)
}

func (t *Tx) RecordApplied(ctx context.Context, m Migration) error {
	return t.adapter.recordApplied(ctx, t.tx, m)
}

func (t *Tx) RecordReverted(ctx context.Context, m Migration) error {
	return t.adapter.recordReverted(ctx, t.tx, m)
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
