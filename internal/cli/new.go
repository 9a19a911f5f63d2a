package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator/internal/config"
	"github.com/bcomnes/dagrator/sqlfile"
)

// Create creates a new migration pair.
type Create struct {
	Description string   `arg:"" help:"Short description of the migration, used in the file names."`
	Depends     []string `help:"Migration IDs (or unique prefixes) the new migration depends on. Default: every migration nothing depends on yet."`
	Root        bool     `help:"Create a migration without dependencies."`
}

// Run the new command.
func (c *Create) Run(appCtx *Context, cfg *config.Config) error {
	if c.Root && len(c.Depends) > 0 {
		return errors.New("--root and --depends are mutually exclusive")
	}

	g, files, err := loadGraph(appCtx, cfg)
	if err != nil {
		return err
	}

	var deps []uuid.UUID
	switch {
	case c.Root:
	case len(c.Depends) > 0:
		for _, d := range c.Depends {
			id, err := resolveID(files, d)
			if err != nil {
				return err
			}
			if !g.Has(id) {
				return fmt.Errorf("unknown migration ID %s", id)
			}
			deps = append(deps, id)
		}
	default:
		deps = g.Frontier()
	}

	fmt.Fprintf(appCtx.Stdout, "[%s] Creating new migration '%s'...\n", appCtx.now(), c.Description)
	created, err := sqlfile.CreateFS(appCtx.FS, sqlfile.Config{MigrationPattern: cfg.MigrationPattern}, c.Description, deps)
	if err != nil {
		return err
	}
	fmt.Fprintf(appCtx.Stdout, "[%s] Created migration %s:\n  - %s\n  - %s\n",
		appCtx.now(), created.ID, created.DoFile, created.UndoFile)

	return nil
}
