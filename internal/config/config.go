// Package config loads the dagrator configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are the configuration files looked up in the working directory
// when no path is given explicitly, in order.
var DefaultPaths = []string{"dagrator.yaml", "dagrator.yml", "dagrator.json"}

// UserPath returns the per-user configuration file, looked up after
// DefaultPaths.
func UserPath() string {
	return filepath.Join(xdg.ConfigHome, "dagrator", "config.yaml")
}

// Config holds the settings shared by every dagrator command. Zero values mean
// "not set" so that configuration sources can be layered.
type Config struct {
	// Driver is the database driver: "pg" or "sqlite3".
	Driver string `json:"driver" yaml:"driver"`
	// Conn is the connection string handed to the driver.
	Conn string `json:"conn" yaml:"conn"`
	// SchemaTable is the bookkeeping table, optionally schema qualified.
	SchemaTable string `json:"schema_table" yaml:"schema_table"`
	// CurrentSchema sets the search path during migrations (PostgreSQL only).
	CurrentSchema string `json:"current_schema" yaml:"current_schema"`
	// MigrationPattern is the glob pattern migration files are loaded from.
	MigrationPattern string `json:"migration_pattern" yaml:"migration_pattern"`
	// Newline is the line ending files are converted to before checksumming.
	Newline string `json:"newline" yaml:"newline"`
	// ValidateChecksums rejects applied migration files that changed on disk.
	ValidateChecksums *bool `json:"validate_checksums" yaml:"validate_checksums"`
}

// Load reads the configuration file at path from fs. JSON is expected unless
// the file has a .yaml or .yml extension. If path is empty, the first existing
// file of DefaultPaths and UserPath is used, and an empty Config is returned
// when there is none.
func Load(fs vfs.FileSystem, path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		for _, p := range append(slices.Clone(DefaultPaths), UserPath()) {
			if _, err := fs.Stat(p); err != nil {
				if vfs.IsErrNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("failed checking configuration file %s: %w", p, err)
			}
			path = p
			break
		}
		if path == "" {
			return cfg, nil
		}
	}

	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed reading configuration file: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed parsing configuration file %s: %w", path, err)
	}

	return cfg, nil
}

// SetDefaults fills in the built-in value of every unset field.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "pg"
	}
	if c.SchemaTable == "" {
		c.SchemaTable = "_dagrator"
	}
	if c.MigrationPattern == "" {
		c.MigrationPattern = "migrations/*.sql"
	}
	if c.ValidateChecksums == nil {
		v := true
		c.ValidateChecksums = &v
	}
}

// Validate checks the values that can be checked without a database.
func (c *Config) Validate() error {
	switch c.Driver {
	case "pg", "postgres", "pgx", "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported driver '%s': use pg or sqlite3", c.Driver)
	}
	switch c.Newline {
	case "", "LF", "CR", "CRLF":
	default:
		return fmt.Errorf("invalid newline '%s': use LF, CR or CRLF", c.Newline)
	}
	if c.MigrationPattern != "" {
		if _, err := filepath.Match(filepath.Base(c.MigrationPattern), ""); err != nil {
			return fmt.Errorf("invalid migration pattern '%s': %w", c.MigrationPattern, err)
		}
	}
	return nil
}

// Checksums reports whether checksum validation is enabled. Unset means
// enabled.
func (c *Config) Checksums() bool {
	return c.ValidateChecksums == nil || *c.ValidateChecksums
}
