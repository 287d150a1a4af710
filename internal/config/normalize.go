package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.Git = strings.TrimSpace(c.Tools.Git)
	if c.Tools.Git == "" {
		c.Tools.Git = defaultGitBinary
	}
	c.Tools.Tar = strings.TrimSpace(c.Tools.Tar)
	if c.Tools.Tar == "" {
		c.Tools.Tar = defaultTarBinary
	}
	c.Tools.Shell = strings.TrimSpace(c.Tools.Shell)
	if c.Tools.Shell == "" {
		c.Tools.Shell = defaultShell
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.CloneTimeout < 0 {
		c.Pipeline.CloneTimeout = 0
	}
	if c.Pipeline.BuildTimeout < 0 {
		c.Pipeline.BuildTimeout = 0
	}
	if c.Pipeline.ArchiveTimeout < 0 {
		c.Pipeline.ArchiveTimeout = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if value, ok := os.LookupEnv(VerboseEnv); ok && strings.EqualFold(strings.TrimSpace(value), "YES") {
		c.Logging.Level = "debug"
	}
}
