package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Tools names the external executables the pipeline drives.
type Tools struct {
	Git   string `toml:"git"`
	Tar   string `toml:"tar"`
	Shell string `toml:"shell"`
}

// Pipeline contains delivery pipeline behaviour.
type Pipeline struct {
	// CloneTimeout bounds each git clone in seconds. 0 disables the limit.
	CloneTimeout int `toml:"clone_timeout"`
	// BuildTimeout bounds each project's builder command in seconds. 0 disables the limit.
	BuildTimeout int `toml:"build_timeout"`
	// ArchiveTimeout bounds the tar invocation in seconds. 0 disables the limit.
	ArchiveTimeout int  `toml:"archive_timeout"`
	VerifyCopies   bool `toml:"verify_copies"`
	Archive        bool `toml:"archive"`
	Ledger         bool `toml:"ledger"`
}

// Notifications configures run outcome notifications.
type Notifications struct {
	// NtfyTopic is the full ntfy topic URL. Empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Source bool   `toml:"source"`
	// File, when set, receives a copy of every log line.
	File string `toml:"file"`
}

// Config encapsulates all configuration values for deliver.
//
// Configuration sections by subsystem:
//   - Paths: run state (ledger database)
//   - Tools: git, tar, and shell executables
//   - Pipeline: timeouts, copy verification, archival, ledger
//   - Notifications: ntfy topic for run outcomes
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deliver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory used for the ledger.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// CloneTimeout returns the configured clone limit; zero means unbounded.
func (c *Config) CloneTimeout() time.Duration {
	return time.Duration(c.Pipeline.CloneTimeout) * time.Second
}

// BuildTimeout returns the configured builder limit; zero means unbounded.
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Pipeline.BuildTimeout) * time.Second
}

// ArchiveTimeout returns the configured tar limit; zero means unbounded.
func (c *Config) ArchiveTimeout() time.Duration {
	return time.Duration(c.Pipeline.ArchiveTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "deliver")
	}
	return defaultStateDirFallback
}

// ErrConfigExists reports that CreateSample would replace an existing file.
var ErrConfigExists = errors.New("config file already exists")

// CreateSample writes the commented sample configuration to path. An existing
// file is only replaced when overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w at %s (use --overwrite to replace it)", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}
