package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deliver/internal/manifest"
	"deliver/internal/preflight"
	"deliver/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <manifest>",
		Short: "Validate a manifest and run preflight checks without building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer := newStatusPrinter(cmd.OutOrStdout())
			printer.section("Manifest")

			m, err := manifest.Load(args[0])
			if err != nil {
				printer.line("Manifest", statusError, args[0])
				return err
			}

			printer.line("Manifest", statusOK, m.Source())
			printer.line("Package", statusInfo, m.PackageName())
			for _, warning := range m.Warnings() {
				printer.line("Warning", statusWarn, warning)
			}
			for _, name := range m.ProjectNames() {
				ref, kind, _ := m.Projects[name].Ref()
				spec := m.Artifacts[name]
				printer.line(name, statusInfo, fmt.Sprintf("%s %s, %d bin(s) from %s", kind, ref, len(spec.Bins), spec.OutputDir()))
			}

			printer.blank()
			printer.section("Preflight")
			results := preflight.RunAll(cfg, m)
			for _, result := range results {
				kind := statusOK
				switch {
				case result.Passed:
				case result.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				printer.line(result.Name, kind, result.Detail)
			}

			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				names := make([]string, 0, len(blocking))
				for _, result := range blocking {
					names = append(names, strings.ToLower(result.Name))
				}
				return services.Wrap(services.ErrConfiguration, "check", "preflight",
					fmt.Sprintf("%d check(s) failed: %s", len(blocking), strings.Join(names, ", ")), nil)
			}
			return nil
		},
	}
}
