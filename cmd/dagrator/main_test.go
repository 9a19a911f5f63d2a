package main

import (
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdataPattern = "../../sqlfile/testdata/migrations/*.sql"

// TestMain triggers helper process mode when GO_HELPER_PROCESS is set.
func TestMain(m *testing.M) {
	if os.Getenv("GO_HELPER_PROCESS") == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runCLI runs the current test binary as a helper process running the CLI.
func runCLI(args []string, extraEnv ...string) (string, error) {
	cmd := exec.Command(os.Args[0], args...)
	env := []string{
		"GO_HELPER_PROCESS=1",
		"XDG_CONFIG_HOME=" + filepath.Join(os.TempDir(), "dagrator-test-xdg"),
	}
	for _, kv := range os.Environ() {
		// Keep the caller's connection settings out of the helper.
		if strings.HasPrefix(kv, "DATABASE_URL=") || strings.HasPrefix(kv, "DAGRATOR_") ||
			strings.HasPrefix(kv, "XDG_CONFIG_HOME=") {
			continue
		}
		env = append(env, kv)
	}
	cmd.Env = append(env, extraEnv...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// makeTempConfig writes a JSON config with a "conn" value, plus extra fields,
// and returns its path.
func makeTempConfig(t *testing.T, conn string, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := map[string]any{
		"driver":            "sqlite3",
		"conn":              conn,
		"migration_pattern": testdataPattern,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		cfg[extra[i]] = extra[i+1]
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestCLIHelp(t *testing.T) {
	out, _ := runCLI([]string{"--help"})
	assert.Contains(t, out, "Usage: dagrator")
	assert.Contains(t, out, "migrate")
	assert.Contains(t, out, "drop-schema")
}

func TestCLIVersion(t *testing.T) {
	out, err := runCLI([]string{"--version"})
	require.NoError(t, err)
	assert.Contains(t, out, "dagrator "+versionString)
}

func TestCLINoCommand(t *testing.T) {
	out, err := runCLI([]string{})
	require.Error(t, err)
	assert.Contains(t, out, "expected one of")
}

func TestCLIUnknownCommand(t *testing.T) {
	out, err := runCLI([]string{"foobar"})
	require.Error(t, err)
	assert.Contains(t, out, "foobar")
}

func TestCLIConfigLoadError(t *testing.T) {
	out, err := runCLI([]string{"--conn", "dummy", "--config", "nonexistent.json", "list"})
	require.Error(t, err)
	assert.Contains(t, out, "failed reading configuration file")
}

func TestCLIMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "app.db")
	args := []string{"--driver", "sqlite3", "--conn", db, "--migration-pattern", testdataPattern}

	out, err := runCLI(append(args, "migrate"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Applied 4 of 4 migration(s)")

	out, err = runCLI(append(args, "list"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "4 of 4 migration(s) applied.")

	out, err = runCLI(append(args, "down", "0190f2a1-6c1e-7a01-8000-000000000001"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Rolled back 3 of 3 migration(s)")
}

func TestCLIMigrateFailureExitCode(t *testing.T) {
	db := filepath.Join(t.TempDir(), "app.db")
	out, err := runCLI([]string{
		"--driver", "sqlite3", "--conn", db, "--migration-pattern", testdataPattern,
		"migrate", "0190f2a1-6c1e-7a01-8000-0000000000ff",
	})
	require.Error(t, err)
	assert.Contains(t, out, "unknown migration ID")
}

func TestConnPrecedence_FlagWins(t *testing.T) {
	tmpDir := t.TempDir()
	flagDB := filepath.Join(tmpDir, "flag.db")
	envDB := filepath.Join(tmpDir, "env.db")
	cfgDB := filepath.Join(tmpDir, "cfg.db")

	out, err := runCLI(
		[]string{"--conn", flagDB, "--config", makeTempConfig(t, cfgDB), "list"},
		"DATABASE_URL="+envDB,
	)
	require.NoError(t, err, out)

	assert.True(t, fileExists(flagDB), "expected flag DB to be used")
	assert.False(t, fileExists(envDB))
	assert.False(t, fileExists(cfgDB))
}

func TestConnPrecedence_EnvWins(t *testing.T) {
	tmpDir := t.TempDir()
	envDB := filepath.Join(tmpDir, "env.db")
	cfgDB := filepath.Join(tmpDir, "cfg.db")

	out, err := runCLI([]string{"--config", makeTempConfig(t, cfgDB), "list"}, "DATABASE_URL="+envDB)
	require.NoError(t, err, out)

	assert.True(t, fileExists(envDB), "expected env DB to be used over config DB")
	assert.False(t, fileExists(cfgDB))
}

func TestConnPrecedence_ConfigUsed(t *testing.T) {
	cfgDB := filepath.Join(t.TempDir(), "cfg.db")

	out, err := runCLI([]string{"--config", makeTempConfig(t, cfgDB), "list"})
	require.NoError(t, err, out)

	assert.True(t, fileExists(cfgDB), "expected config DB to be created")
}

func TestConnPrecedence_MissingEverywhere(t *testing.T) {
	out, err := runCLI([]string{"--driver", "sqlite3", "--migration-pattern", testdataPattern, "list"})
	require.Error(t, err)
	assert.Contains(t, out, "connection string must be provided")
}

// TestSchemaTableFlagOverridesConfig verifies that --schema-table overrides the
// value in the config file.
func TestSchemaTableFlagOverridesConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")
	cfgPath := makeTempConfig(t, dbPath, "schema_table", "schema_cfg")

	out, err := runCLI([]string{"--config", cfgPath, "--schema-table", "schema_flag", "migrate"})
	require.NoError(t, err, out)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_flag'`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_cfg'`).Scan(&n))
	assert.Zero(t, n)
}
