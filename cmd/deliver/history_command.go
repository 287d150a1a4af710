package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deliver/internal/ledger"
)

const shortIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded delivery runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(l *ledger.Ledger) error {
				runs, err := l.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					artifacts, err := l.Artifacts(cmd.Context(), run.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						shortID(run.ID),
						run.Package + "." + run.Version,
						statusLabel(run.Status),
						formatStarted(run.StartedAt),
						formatDuration(run.Duration()),
						strconv.Itoa(len(artifacts)),
						run.ErrorKind,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Package", "Status", "Started", "Duration", "Artifacts", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and the artifacts it packaged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(l *ledger.Ledger) error {
				run, err := l.GetRun(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, ledger.ErrAmbiguousID) {
						return fmt.Errorf("%w; use more characters", err)
					}
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				artifacts, err := l.Artifacts(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				renderRun(cmd.OutOrStdout(), run, artifacts)
				return nil
			})
		},
	}
}

func renderRun(out io.Writer, run *ledger.Run, artifacts []*ledger.Artifact) {
	fields := [][2]string{
		{"Run", run.ID},
		{"Package", run.Package + "." + run.Version},
		{"Status", statusLabel(run.Status)},
		{"Manifest", run.ManifestPath},
		{"Workspace", run.Workspace},
		{"Package dir", run.PackageDir},
		{"Started", formatStarted(run.StartedAt)},
		{"Duration", formatDuration(run.Duration())},
		{"Archive", run.ArchivePath},
		{"Archive SHA-256", run.ArchiveDigest},
		{"Error", strings.TrimSpace(strings.Join([]string{run.ErrorKind, run.ErrorMessage}, " "))},
	}
	for _, field := range fields {
		if strings.TrimSpace(field[1]) == "" {
			continue
		}
		fmt.Fprintf(out, "%-16s %s\n", field[0]+":", field[1])
	}
	if len(artifacts) == 0 {
		fmt.Fprintln(out, "No artifacts recorded")
		return
	}
	rows := make([][]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		rows = append(rows, []string{
			artifact.Project,
			artifact.Ref,
			artifact.Name,
			humanize.Bytes(uint64(artifact.SizeBytes)),
			artifact.Digest,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Project", "Ref", "Artifact", "Size", "SHA-256"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func statusLabel(status ledger.Status) string {
	return cases.Title(language.Und).String(string(status))
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func formatStarted(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
