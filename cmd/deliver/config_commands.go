package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deliver/internal/config"
	"deliver/internal/notifications"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigNotifyTestCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.DefaultConfigPath()
			if path := strings.TrimSpace(targetPath); path != "" {
				target, err = config.ExpandPath(path)
			}
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			if err := config.CreateSample(target, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "State dir:   %s\n", cfg.Paths.StateDir)
			fmt.Fprintf(out, "Tools:       git=%s tar=%s shell=%s\n", cfg.Tools.Git, cfg.Tools.Tar, cfg.Tools.Shell)
			fmt.Fprintf(out, "Timeouts:    clone=%s build=%s archive=%s\n", formatLimit(cfg.CloneTimeout()), formatLimit(cfg.BuildTimeout()), formatLimit(cfg.ArchiveTimeout()))
			fmt.Fprintf(out, "Verify:      %s\n", yesNo(cfg.Pipeline.VerifyCopies))
			fmt.Fprintf(out, "Archive:     %s\n", yesNo(cfg.Pipeline.Archive))
			fmt.Fprintf(out, "Ledger:      %s\n", yesNo(cfg.Pipeline.Ledger))
			fmt.Fprintf(out, "Notify:      %s\n", notifyTarget(cfg))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return fmt.Errorf("notifications.ntfy_topic is not set")
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}

func notifyTarget(cfg *config.Config) string {
	if cfg.Notifications.NtfyTopic == "" {
		return "disabled"
	}
	return cfg.Notifications.NtfyTopic
}

func formatLimit(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
