package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"deliver/internal/config"
	"deliver/internal/ledger"
	"deliver/internal/logging"
)

type commandContext struct {
	configFlag    *string
	verboseFlag   *bool
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		verboseFlag:   verboseFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Logging.Level = "debug"
		}
		if c.logFormatFlag != nil {
			if format := strings.ToLower(strings.TrimSpace(*c.logFormatFlag)); format != "" {
				if format != "console" && format != "json" {
					c.configErr = fmt.Errorf("--log-format: unsupported value %q", format)
					return
				}
				cfg.Logging.Format = format
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once, writing to w.
func (c *commandContext) ensureLogger(w io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.OptionsFromConfig(cfg, w))
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openLedger() (*ledger.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return ledger.Open(cfg.LedgerPath())
}

func (c *commandContext) withLedger(fn func(*ledger.Ledger) error) error {
	l, err := c.openLedger()
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()
	return fn(l)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
