// Package config resolves tada settings from defaults, TOML files, .env,
// environment variables and command-line flags, in that order.
package config

import (
	"fmt"
	"strings"

	"github.com/Makepad-fr/tada/internal/store/jsonstore"
)

// Backends selectable with the backend setting.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

// Defaults.
const (
	DefaultBackend        = BackendFile
	DefaultDataFile       = jsonstore.DataFileName
	DefaultDatabase       = "todos.db"
	DefaultRemote         = "http://127.0.0.1:8080"
	DefaultListen         = "127.0.0.1:8080"
	DefaultCollection     = "todos"
	DefaultTheme          = "classic"
	DefaultLogLevel       = "info"
	DefaultTimeoutSeconds = 10
)

// Config is the resolved configuration.
type Config struct {
	// Backend is one of memory, file, sqlite or remote.
	Backend  string `toml:"backend"`
	DataFile string `toml:"data_file"`
	Database string `toml:"database"`
	// Remote is the base URL of a `tada serve` instance.
	Remote string `toml:"remote"`
	// Listen is the address `tada serve` binds to.
	Listen         string `toml:"listen"`
	Collection     string `toml:"collection"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	Theme    string `toml:"theme"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	// Group and Plain tune `tada ls`.
	Group bool `toml:"group"`
	Plain bool `toml:"plain"`
}

func setDefaults(cfg *Config) {
	cfg.Backend = DefaultBackend
	cfg.DataFile = DefaultDataFile
	cfg.Database = DefaultDatabase
	cfg.Remote = DefaultRemote
	cfg.Listen = DefaultListen
	cfg.Collection = DefaultCollection
	cfg.TimeoutSeconds = DefaultTimeoutSeconds
	cfg.Theme = DefaultTheme
	cfg.LogLevel = DefaultLogLevel
}

// Validate checks settings that have a fixed set of values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRemote:
	default:
		return fmt.Errorf("invalid backend %q: must be one of memory, file, sqlite, remote", c.Backend)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("collection must not be empty")
	}
	if c.Backend == BackendRemote && c.Remote == "" {
		return fmt.Errorf("remote backend needs a remote URL")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	return nil
}
