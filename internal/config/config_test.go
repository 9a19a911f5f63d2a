package config

import (
	"path/filepath"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    Config
	}{
		{
			name:    "json",
			path:    "/etc/dagrator.json",
			content: `{"driver": "sqlite3", "conn": "file:app.db", "schema_table": "app.migrations", "validate_checksums": false}`,
			want: Config{
				Driver:            "sqlite3",
				Conn:              "file:app.db",
				SchemaTable:       "app.migrations",
				ValidateChecksums: new(bool),
			},
		},
		{
			name:    "yaml",
			path:    "/etc/dagrator.yaml",
			content: "driver: pg\nmigration_pattern: db/*.sql\nnewline: LF\ncurrent_schema: app\n",
			want: Config{
				Driver:           "pg",
				MigrationPattern: "db/*.sql",
				Newline:          "LF",
				CurrentSchema:    "app",
			},
		},
		{
			name: "empty",
			path: "/etc/dagrator.yml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memoryfs.New()
			require.NoError(t, fs.MkdirAll("/etc", 0o755))
			require.NoError(t, vfs.WriteFile(fs, tt.path, []byte(tt.content), 0o644))

			cfg, err := Load(fs, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestLoadDefaultPaths(t *testing.T) {
	fs := memoryfs.New()
	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)

	require.NoError(t, vfs.WriteFile(fs, "dagrator.json", []byte(`{"driver": "sqlite3"}`), 0o644))
	cfg, err = Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)

	// YAML is looked up first.
	require.NoError(t, vfs.WriteFile(fs, "dagrator.yml", []byte("driver: pg\n"), 0o644))
	cfg, err = Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "pg", cfg.Driver)
}

func TestLoadErrors(t *testing.T) {
	fs := memoryfs.New()
	_, err := Load(fs, "/missing.json")
	require.ErrorContains(t, err, "failed reading configuration file")

	require.NoError(t, vfs.WriteFile(fs, "/bad.json", []byte(`{"driver": `), 0o644))
	_, err = Load(fs, "/bad.json")
	require.ErrorContains(t, err, "failed parsing configuration file /bad.json")

	require.NoError(t, vfs.WriteFile(fs, "/bad.yaml", []byte("driver: [pg\n"), 0o644))
	_, err = Load(fs, "/bad.yaml")
	require.ErrorContains(t, err, "failed parsing configuration file /bad.yaml")
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	assert.Equal(t, "pg", cfg.Driver)
	assert.Equal(t, "_dagrator", cfg.SchemaTable)
	assert.Equal(t, "migrations/*.sql", cfg.MigrationPattern)
	assert.True(t, cfg.Checksums())

	off := false
	cfg = &Config{Driver: "sqlite3", SchemaTable: "s.t", ValidateChecksums: &off}
	cfg.SetDefaults()
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "s.t", cfg.SchemaTable)
	assert.False(t, cfg.Checksums())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults", cfg: Config{Driver: "pg"}},
		{name: "sqlite", cfg: Config{Driver: "sqlite3", Newline: "CRLF"}},
		{name: "driver", cfg: Config{Driver: "mysql"}, wantErr: "unsupported driver 'mysql'"},
		{name: "newline", cfg: Config{Driver: "pg", Newline: "NEL"}, wantErr: "invalid newline 'NEL'"},
		{name: "pattern", cfg: Config{Driver: "pg", MigrationPattern: "m/[.sql"}, wantErr: "invalid migration pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadUserPath(t *testing.T) {
	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll(filepath.Dir(UserPath()), 0o755))
	require.NoError(t, vfs.WriteFile(fs, UserPath(), []byte("driver: sqlite3\nconn: user.db\n"), 0o644))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "user.db", cfg.Conn)

	// A file in the working directory wins.
	require.NoError(t, vfs.WriteFile(fs, "dagrator.json", []byte(`{"conn": "local.db"}`), 0o644))
	cfg, err = Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.Conn)
}
