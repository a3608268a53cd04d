package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nadc-check/internal/report"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the CLI version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.format(out) == report.FormatJSON {
				return report.PrintJSON(out, map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(out, "nadc-check version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
