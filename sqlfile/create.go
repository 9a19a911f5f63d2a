package sqlfile

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Created describes a newly scaffolded migration pair.
type Created struct {
	ID       uuid.UUID
	DoFile   string
	UndoFile string
}

// Create writes a new pair of migration files (do/undo) to the OS filesystem.
func Create(cfg Config, description string, deps []uuid.UUID) (*Created, error) {
	return CreateFS(osfs.New(), cfg, description, deps)
}

// CreateFS writes a new pair of migration files into the directory of
// cfg.MigrationPattern. The ID is a UUIDv7, so it sorts after every existing
// migration created the same way. description is kebab-cased for the file
// names and recorded in the do file header together with deps.
func CreateFS(fs vfs.FileSystem, cfg Config, description string, deps []uuid.UUID) (*Created, error) {
	if cfg.MigrationPattern == "" {
		cfg.MigrationPattern = DefaultConfig.MigrationPattern
	}
	migFolder := filepath.Dir(cfg.MigrationPattern)

	kebabDesc := kebabCase(description)
	if kebabDesc == "" {
		return nil, fmt.Errorf("migration description %q has no usable characters", description)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate migration id: %w", err)
	}

	c := &Created{
		ID:       id,
		DoFile:   filepath.Join(migFolder, fmt.Sprintf("%s.do.%s.sql", id, kebabDesc)),
		UndoFile: filepath.Join(migFolder, fmt.Sprintf("%s.undo.%s.sql", id, kebabDesc)),
	}

	var header strings.Builder
	fmt.Fprintf(&header, "-- description: %s\n", strings.TrimSpace(description))
	if len(deps) > 0 {
		ids := make([]string, len(deps))
		for i, d := range deps {
			ids[i] = d.String()
		}
		fmt.Fprintf(&header, "-- depends: %s\n", strings.Join(ids, ", "))
	}
	doContent := []byte(header.String() + "\n-- Write your migration SQL here\n")
	undoContent := []byte("-- Write your rollback SQL here\n")

	if err := fs.MkdirAll(migFolder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migration folder %s: %w", migFolder, err)
	}
	if err := vfs.WriteFile(fs, c.DoFile, doContent, 0o644); err != nil {
		return nil, fmt.Errorf("failed to create migration file %s: %w", c.DoFile, err)
	}
	if err := vfs.WriteFile(fs, c.UndoFile, undoContent, 0o644); err != nil {
		return nil, fmt.Errorf("failed to create migration file %s: %w", c.UndoFile, err)
	}
	return c, nil
}

var kebabRe = regexp.MustCompile("[^a-z0-9]+")

// kebabCase converts a string to kebab-case.
func kebabCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = kebabRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
