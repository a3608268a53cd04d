package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"nadc-check/internal/domain"
	"nadc-check/internal/report"
)

const formatAuto = "auto"

func validateOutputFormat(output string) error {
	if output != "" && output != report.FormatTable && output != report.FormatJSON && output != formatAuto {
		return fmt.Errorf("unsupported output format %q: use 'table', 'json' or 'auto'", output)
	}
	return nil
}

// resolveOutput maps "auto" to table on a terminal and JSON otherwise.
func resolveOutput(output string, w io.Writer) string {
	switch output {
	case "", report.FormatTable:
		return report.FormatTable
	case formatAuto:
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
			return report.FormatTable
		}
		return report.FormatJSON
	default:
		return output
	}
}

// format returns the effective output format for writing to w.
func (a *app) format(w io.Writer) string {
	return resolveOutput(a.output, w)
}

// writeReportFile writes r as JSON to path.
func writeReportFile(path string, r *domain.Report) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file: %w", cerr)
		}
	}()
	if err := report.WriteJSON(f, r); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

// exitStatus maps a finished report to the process exit code.
func exitStatus(r *domain.Report) error {
	switch {
	case r.HasDiscrepancies():
		return &exitCodeError{code: ExitDiscrepancies}
	case r.HasUnverified():
		return &exitCodeError{code: ExitUnverified}
	default:
		return nil
	}
}
