package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Sources names where configuration is read from.
type Sources struct {
	UserFile    string // ~/.tada/config.toml
	ProjectFile string // ./.tada.toml
	EnvFile     string // ./.env
	WorkDir     string
	Getenv      func(string) string
}

// DefaultSources points at the user's home and the working directory.
func DefaultSources() Sources {
	src := Sources{Getenv: os.Getenv}
	if home, err := os.UserHomeDir(); err == nil {
		src.UserFile = filepath.Join(home, ".tada", "config.toml")
	}
	if wd, err := os.Getwd(); err == nil {
		src.WorkDir = wd
		src.ProjectFile = filepath.Join(wd, ".tada.toml")
		src.EnvFile = filepath.Join(wd, ".env")
	}
	return src
}

// Load resolves configuration from DefaultSources, registering tada's flags
// on fs and parsing args with it.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	return LoadFrom(DefaultSources(), fs, args)
}

// LoadFrom resolves configuration in priority order:
// 1. Defaults
// 2. User config file
// 3. Project config file
// 4. Environment, falling back to the .env file
// 5. CLI flags
func LoadFrom(src Sources, fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	for _, path := range []string{src.UserFile, src.ProjectFile} {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	dotenv, err := readEnvFile(src.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("loading env file %s: %w", src.EnvFile, err)
	}
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := loadFromEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if fs != nil {
		registerFlags(cfg, fs)
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("parsing flags: %w", err)
		}
	}

	finalize(cfg, src.WorkDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return godotenv.Read(path)
}

func loadFromEnv(cfg *Config, lookup func(string) string) error {
	strs := map[string]*string{
		"TADA_BACKEND":    &cfg.Backend,
		"TADA_DATA":       &cfg.DataFile,
		"TADA_DB":         &cfg.Database,
		"TADA_REMOTE":     &cfg.Remote,
		"TADA_LISTEN":     &cfg.Listen,
		"TADA_COLLECTION": &cfg.Collection,
		"TADA_THEME":      &cfg.Theme,
		"TADA_LOG_LEVEL":  &cfg.LogLevel,
		"TADA_LOG_FILE":   &cfg.LogFile,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(lookup("TADA_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TADA_TIMEOUT_SECONDS: not a number: %q", v)
		}
		cfg.TimeoutSeconds = n
	}
	for key, dst := range map[string]*bool{"TADA_GROUP": &cfg.Group, "TADA_PLAIN": &cfg.Plain} {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: not a boolean: %q", key, v)
			}
			*dst = b
		}
	}
	return nil
}

// registerFlags binds flags to cfg, using the values resolved so far as
// defaults so that only flags actually passed override them.
func registerFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "store backend: memory, file, sqlite or remote")
	fs.StringVar(&cfg.DataFile, "data", cfg.DataFile, "JSON data file for the file backend")
	fs.StringVar(&cfg.Database, "db", cfg.Database, "SQLite database for the sqlite backend")
	fs.StringVar(&cfg.Remote, "remote", cfg.Remote, "server URL for the remote backend")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "address the server listens on")
	fs.StringVar(&cfg.Collection, "collection", cfg.Collection, "collection holding the items")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "request timeout in seconds")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "color theme: classic, neon or mono")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "group output by pending/done")
	fs.BoolVar(&cfg.Plain, "plain", cfg.Plain, "print the list instead of opening the interactive view")
}

func finalize(cfg *Config, workDir string) {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Remote = strings.TrimRight(cfg.Remote, "/")
	cfg.DataFile = resolvePath(cfg.DataFile, workDir)
	cfg.Database = resolvePath(cfg.Database, workDir)
	if cfg.LogFile != "" {
		cfg.LogFile = resolvePath(cfg.LogFile, workDir)
	}
}

func resolvePath(p, workDir string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if p == "" || filepath.IsAbs(p) || workDir == "" {
		return p
	}
	return filepath.Join(workDir, p)
}
