package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deliver/internal/config"
	"deliver/internal/deps"
	"deliver/internal/logging"
	"deliver/internal/manifest"
	"deliver/internal/notifications"
	"deliver/internal/pipeline"
	"deliver/internal/preflight"
	"deliver/internal/runner"
	"deliver/internal/services"
)

type runFlags struct {
	noArchive    bool
	noLedger     bool
	buildTimeout time.Duration
	verify       bool
	noVerify     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.noArchive, "no-archive", false, "Skip creating the package tarball")
	flags.BoolVar(&f.noLedger, "no-ledger", false, "Do not record the run in the ledger")
	flags.DurationVar(&f.buildTimeout, "build-timeout", 0, "Kill a project's builder after this long (0 keeps the configured limit)")
	flags.BoolVar(&f.verify, "verify", false, "Verify every copied artifact against its source digest")
	flags.BoolVar(&f.noVerify, "no-verify", false, "Skip copy verification")
	cmd.MarkFlagsMutuallyExclusive("verify", "no-verify")
}

func (f *runFlags) apply(cfg *config.Config) pipeline.Options {
	opts := pipeline.Options{
		GitBinary:      cfg.Tools.Git,
		TarBinary:      cfg.Tools.Tar,
		CloneTimeout:   cfg.CloneTimeout(),
		BuildTimeout:   cfg.BuildTimeout(),
		ArchiveTimeout: cfg.ArchiveTimeout(),
		Verify:         cfg.Pipeline.VerifyCopies,
		Archive:        cfg.Pipeline.Archive && !f.noArchive,
	}
	if f.buildTimeout > 0 {
		opts.BuildTimeout = f.buildTimeout
	}
	switch {
	case f.verify:
		opts.Verify = true
	case f.noVerify:
		opts.Verify = false
	}
	return opts
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Clone, build, and package every project in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelivery(cmd, ctx, args[0], flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runDelivery(cmd *cobra.Command, ctx *commandContext, manifestPath string, flags *runFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	opts := flags.apply(cfg)
	missing := deps.Missing(preflight.CheckSystemDeps(cfg))
	if !opts.Archive {
		missing = withoutDependency(missing, "tar")
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, status := range missing {
			names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "dependencies", strings.Join(names, ", "), nil)
	}

	opts.Logger = logger
	opts.Runner = runner.New(logger, runner.WithShell(cfg.Tools.Shell))
	if cfg.Pipeline.Ledger && !flags.noLedger {
		l, err := ctx.openLedger()
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()
		opts.Recorder = l
	}

	report, runErr := pipeline.New(opts).Run(cmd.Context(), m)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, runErr == nil)
	}
	notifyOutcome(cmd.Context(), notifications.NewService(cfg), logger, m.PackageName(), report, runErr)
	return runErr
}

// notifyOutcome publishes the run result. Delivery failures are logged only.
func notifyOutcome(ctx context.Context, svc notifications.Service, logger *slog.Logger, pkg string, report *pipeline.Report, runErr error) {
	event := notifications.EventRunCompleted
	payload := notifications.Payload{"package": pkg}
	if runErr != nil {
		event = notifications.EventRunFailed
		payload["kind"] = services.Kind(runErr)
		payload["error"] = runErr.Error()
	} else if report != nil {
		payload["artifacts"] = strconv.Itoa(report.ArtifactCount())
		payload["duration"] = report.Duration().Round(time.Second).String()
		payload["archive"] = report.ArchivePath
	}
	if err := svc.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger.Warn("run notification failed",
			logging.String(logging.FieldEventType, "notification_failure"),
			logging.Error(err),
		)
	}
}

func withoutDependency(statuses []deps.Status, name string) []deps.Status {
	filtered := statuses[:0]
	for _, status := range statuses {
		if status.Name != name {
			filtered = append(filtered, status)
		}
	}
	return filtered
}

func printReport(out io.Writer, report *pipeline.Report, succeeded bool) {
	rows := make([][]string, 0, report.ArtifactCount())
	for _, project := range report.Projects {
		for _, artifact := range project.Artifacts {
			rows = append(rows, []string{
				project.Name,
				artifact.Name,
				humanize.Bytes(uint64(artifact.Size)),
				artifact.Digest,
			})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Project", "Artifact", "Size", "SHA-256"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	fmt.Fprintf(out, "Run:      %s\n", report.RunID)
	fmt.Fprintf(out, "Package:  %s\n", report.PackageDir)
	if report.ArchivePath != "" {
		fmt.Fprintf(out, "Archive:  %s\n", report.ArchivePath)
		fmt.Fprintf(out, "SHA-256:  %s\n", report.ArchiveDigest)
	}
	status := "succeeded"
	if !succeeded {
		status = "failed"
	}
	fmt.Fprintf(out, "Status:   %s (%s)\n", status, report.Duration().Round(time.Millisecond))
}
