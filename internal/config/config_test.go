package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSources(t *testing.T, env map[string]string) Sources {
	t.Helper()
	dir := t.TempDir()
	return Sources{
		UserFile:    filepath.Join(dir, "home", "config.toml"),
		ProjectFile: filepath.Join(dir, ".tada.toml"),
		EnvFile:     filepath.Join(dir, ".env"),
		WorkDir:     dir,
		Getenv:      func(k string) string { return env[k] },
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("tada", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	src := testSources(t, nil)
	cfg, err := LoadFrom(src, newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, filepath.Join(src.WorkDir, DefaultDataFile), cfg.DataFile)
	assert.Equal(t, "todos.json", filepath.Base(cfg.DataFile))
	assert.Equal(t, filepath.Join(src.WorkDir, DefaultDatabase), cfg.Database)
	assert.Equal(t, DefaultCollection, cfg.Collection)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.TimeoutSeconds)
	assert.False(t, cfg.Group)
}

func TestLoad_Precedence(t *testing.T) {
	src := testSources(t, map[string]string{"TADA_THEME": "mono"})
	write(t, src.UserFile, "backend = \"sqlite\"\ntheme = \"neon\"\nlog_level = \"debug\"\n")
	write(t, src.ProjectFile, "database = \"project.db\"\n")
	write(t, src.EnvFile, "TADA_LOG_LEVEL=warn\nTADA_THEME=classic\n")

	cfg, err := LoadFrom(src, newFlagSet(), []string{"-group", "ls"})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend, "user file")
	assert.Equal(t, filepath.Join(src.WorkDir, "project.db"), cfg.Database, "project file")
	assert.Equal(t, "warn", cfg.LogLevel, ".env beats config files")
	assert.Equal(t, "mono", cfg.Theme, "process env beats .env")
	assert.True(t, cfg.Group, "flag")
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	src := testSources(t, map[string]string{"TADA_BACKEND": "sqlite"})
	fs := newFlagSet()
	cfg, err := LoadFrom(src, fs, []string{"-backend", "remote", "-remote", "http://example.test:9000/", "add", "x"})
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.Backend)
	assert.Equal(t, "http://example.test:9000", cfg.Remote)
	assert.Equal(t, []string{"add", "x"}, fs.Args())
}

func TestLoad_InvalidBackend(t *testing.T) {
	src := testSources(t, map[string]string{"TADA_BACKEND": "firestore"})
	_, err := LoadFrom(src, newFlagSet(), nil)
	assert.ErrorContains(t, err, "invalid backend")
}

func TestLoad_BadEnvNumber(t *testing.T) {
	src := testSources(t, map[string]string{"TADA_TIMEOUT_SECONDS": "soon"})
	_, err := LoadFrom(src, newFlagSet(), nil)
	assert.ErrorContains(t, err, "TADA_TIMEOUT_SECONDS")
}

func TestLoad_BadTOML(t *testing.T) {
	src := testSources(t, nil)
	write(t, src.ProjectFile, "backend = \n")
	_, err := LoadFrom(src, newFlagSet(), nil)
	assert.ErrorContains(t, err, "loading config file")
}
