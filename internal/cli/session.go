package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/internal/config"
	"github.com/bcomnes/dagrator/sqladapter"
	"github.com/bcomnes/dagrator/sqlfile"
)

// session is an open database together with the migrations loaded from disk.
type session struct {
	db       *sql.DB
	adapter  *sqladapter.Adapter
	migrator *dagrator.Migrator[sqladapter.Migration]
	files    []*sqlfile.Migration
}

// sqlDriverName maps a configured driver to the database/sql driver name.
func sqlDriverName(driver string) string {
	switch driver {
	case "pg", "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite3"
	}
	return driver
}

// loadGraph reads the migration files and registers them in a new graph.
func loadGraph(appCtx *Context, cfg *config.Config) (*dagrator.Graph[sqladapter.Migration], []*sqlfile.Migration, error) {
	files, err := sqlfile.LoadFS(appCtx.FS, sqlfile.Config{
		MigrationPattern: cfg.MigrationPattern,
		Newline:          cfg.Newline,
	})
	if err != nil {
		return nil, nil, err
	}

	g := dagrator.NewGraph[sqladapter.Migration]()
	for _, f := range files {
		if err := g.Register(f); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f.DoFile, err)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}
	return g, files, nil
}

// openAdapter connects to the database and wraps it in an adapter.
func openAdapter(appCtx *Context, cfg *config.Config) (*sqladapter.Adapter, error) {
	if cfg.Conn == "" {
		return nil, errors.New(`connection string must be provided via --conn flag, DAGRATOR_CONN or DATABASE_URL env var, or "conn" in config file`)
	}

	db, err := sql.Open(sqlDriverName(cfg.Driver), cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed opening database: %w", err)
	}
	if err = db.PingContext(appCtx.Ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed connecting to database: %w", err)
	}

	adapter, err := sqladapter.New(sqladapter.Config{
		Driver:        cfg.Driver,
		SchemaTable:   cfg.SchemaTable,
		CurrentSchema: cfg.CurrentSchema,
	}, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return adapter, nil
}

// openSession connects to the database and prepares a Migrator over the
// migration files.
func openSession(appCtx *Context, cfg *config.Config) (*session, error) {
	g, files, err := loadGraph(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	adapter, err := openAdapter(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	return &session{
		db:       adapter.DB(),
		adapter:  adapter,
		migrator: dagrator.NewMigrator(g, dagrator.Adapter[sqladapter.Migration](adapter), dagrator.WithLogger(appCtx.Logger)),
		files:    files,
	}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

// migrations returns the loaded files as adapter migrations.
func (s *session) migrations() []sqladapter.Migration {
	migs := make([]sqladapter.Migration, len(s.files))
	for i, f := range s.files {
		migs[i] = f
	}
	return migs
}

func (s *session) file(id uuid.UUID) string {
	for _, f := range s.files {
		if f.ID() == id {
			return f.DoFile
		}
	}
	return ""
}

// resolveID parses a full migration ID, or a prefix matching exactly one of
// the loaded migrations.
func resolveID(files []*sqlfile.Migration, s string) (uuid.UUID, error) {
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	prefix := strings.ToLower(s)
	var matches []uuid.UUID
	for _, f := range files {
		if strings.HasPrefix(f.ID().String(), prefix) {
			matches = append(matches, f.ID())
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("no migration matches '%s'", s)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("migration ID prefix '%s' is ambiguous: %d migrations match", s, len(matches))
	}
}

// parseTarget turns a target argument into a Target. Empty and "all" select
// every migration.
func parseTarget(files []*sqlfile.Migration, arg string, before bool) (dagrator.Target, error) {
	if arg == "" || strings.EqualFold(arg, "all") {
		if before {
			return dagrator.Target{}, errors.New("--before requires a migration ID target")
		}
		return dagrator.All, nil
	}
	id, err := resolveID(files, arg)
	if err != nil {
		return dagrator.Target{}, err
	}
	if before {
		return dagrator.Before(id), nil
	}
	return dagrator.To(id), nil
}
