// Package cli implements the dagrator command line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/bcomnes/dagrator/internal/config"
)

// CLI is the command line interface of dagrator.
type CLI struct {
	Migrate    Migrate    `kong:"cmd,help='Apply migrations up to a target (default: all).'"`
	Down       Down       `kong:"cmd,help='Revert migrations down to a target (default: all).'"`
	Plan       Plan       `kong:"cmd,help='Show the steps migrate or down would run.'"`
	List       List       `kong:"cmd,help='List migrations and whether they are applied.',aliases='ls'"`
	New        Create     `kong:"cmd,name='new',help='Create a new empty migration pair.'"`
	DropSchema DropSchema `kong:"cmd,name='drop-schema',help='Drop the migration bookkeeping table.'"`

	Driver           string `kong:"help='Database driver (pg or sqlite3). Default: pg.'"`
	Conn             string `kong:"env='DAGRATOR_CONN,DATABASE_URL',help='Database connection string.'"`
	ConfigFile       string `kong:"name='config',help='Path to a JSON or YAML configuration file. Default: ${configFiles}.'"`
	MigrationPattern string `kong:"help='Glob pattern of migration files. Default: migrations/*.sql.'"`
	SchemaTable      string `kong:"help='Table migration state is stored in. Default: _dagrator.'"`
	CurrentSchema    string `kong:"help='Schema search path used while migrating (PostgreSQL only).'"`
	Newline          string `kong:"help='Convert line endings (LF, CR or CRLF) before checksumming files.'"`
	SkipChecksums    bool   `kong:"help='Do not check applied migration files for changes.'"`

	Timeout time.Duration `kong:"default='10m',help='Abort the command after this long (0 disables).'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	Version kong.VersionFlag `kong:"help='Output version and exit.'"`

	checksums *bool

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(version string, opts ...kong.Option) (*CLI, error) {
	c := &CLI{}
	kopts := append([]kong.Option{
		kong.Name("dagrator"),
		kong.Description("Apply and revert SQL migrations ordered by their dependencies."),
		kong.UsageOnError(),
		kong.DefaultEnvars("DAGRATOR"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFiles": strings.Join(config.DefaultPaths, ", "),
			"version":     version,
		},
	}, opts...)
	kparser, err := kong.New(c, kopts...)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	cfg := c.Settings()
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmdCtx := *appCtx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx.Ctx, cancel = context.WithTimeout(appCtx.Ctx, c.Timeout)
		defer cancel()
	}

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(&cmdCtx, cfg)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyConfig applies configuration values to the CLI, but only if they weren't
// already set by a flag or environment variable.
func (c *CLI) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	c.Driver = firstNonEmpty(c.Driver, cfg.Driver)
	c.Conn = firstNonEmpty(c.Conn, cfg.Conn)
	c.MigrationPattern = firstNonEmpty(c.MigrationPattern, cfg.MigrationPattern)
	c.SchemaTable = firstNonEmpty(c.SchemaTable, cfg.SchemaTable)
	c.CurrentSchema = firstNonEmpty(c.CurrentSchema, cfg.CurrentSchema)
	c.Newline = firstNonEmpty(c.Newline, cfg.Newline)
	if !c.SkipChecksums && cfg.ValidateChecksums != nil {
		v := *cfg.ValidateChecksums
		c.checksums = &v
	}
}

// Settings returns the effective configuration: flags and environment, the
// values applied by ApplyConfig, then built-in defaults.
func (c *CLI) Settings() *config.Config {
	cfg := &config.Config{
		Driver:            c.Driver,
		Conn:              c.Conn,
		SchemaTable:       c.SchemaTable,
		CurrentSchema:     c.CurrentSchema,
		MigrationPattern:  c.MigrationPattern,
		Newline:           c.Newline,
		ValidateChecksums: c.checksums,
	}
	if c.SkipChecksums {
		off := false
		cfg.ValidateChecksums = &off
	}
	cfg.SetDefaults()
	return cfg
}

// Run parses args, layers the configuration file under them and runs the
// selected command.
func Run(appCtx *Context, version string, args []string, opts ...kong.Option) error {
	opts = append([]kong.Option{kong.Writers(appCtx.Stdout, appCtx.Stderr)}, opts...)
	c, err := New(version, opts...)
	if err != nil {
		return err
	}
	if err = c.Parse(args); err != nil {
		return err
	}

	if appCtx.LogLevel != nil {
		appCtx.LogLevel.Set(c.Log.Level)
	}

	fileCfg, err := config.Load(appCtx.FS, c.ConfigFile)
	if err != nil {
		return err
	}
	c.ApplyConfig(fileCfg)

	appCtx.Logger.Debug("running command", "command", c.Command())

	return c.Execute(appCtx)
}

// firstNonEmpty returns the first non-empty string in the provided list.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
