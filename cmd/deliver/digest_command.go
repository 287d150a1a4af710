package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deliver/internal/digest"
)

func newDigestCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "digest <file>...",
		Short:       "Print the SHA-256 digest of files",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				sum, err := digest.File(path)
				if err != nil {
					return fmt.Errorf("digest %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s  %s\n", sum, path)
			}
			return nil
		},
	}
}
