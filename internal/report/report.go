package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"nadc-check/internal/domain"
)

// Formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// document is the JSON form of a report.
type document struct {
	*domain.Report
	Summary domain.Summary `json:"summary"`
}

// Write renders r in the given format.
func Write(w io.Writer, format string, r *domain.Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatTable, "":
		return WriteTable(w, r)
	default:
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", format)
	}
}

// WriteJSON writes the full report, including consistent leaves and a summary.
func WriteJSON(w io.Writer, r *domain.Report) error {
	leaves := r.Leaves
	if leaves == nil {
		leaves = []domain.LeafResult{}
	}
	cp := *r
	cp.Leaves = leaves
	return PrintJSON(w, document{Report: &cp, Summary: r.Summary()})
}

// WriteTable writes the discrepancies, the unverified leaves and a summary.
// Consistent leaves are only counted.
func WriteTable(w io.Writer, r *domain.Report) error {
	discs := r.Discrepancies()
	if len(discs) > 0 {
		rows := make([][]string, 0, len(discs))
		for _, d := range discs {
			path := d.Path
			if path == "" {
				path = d.LeafPath
			}
			rows = append(rows, []string{
				d.Family, string(d.Kind), path,
				strconv.Itoa(d.Expected), strconv.Itoa(d.Actual),
			})
		}
		PrintTable(w, []string{"family", "kind", "path", "expected", "actual"}, rows)
		fmt.Fprintln(w)
	}

	var unverified [][]string
	for _, l := range r.Leaves {
		if l.Status == domain.LeafUnverified {
			unverified = append(unverified, []string{l.Family, l.Path, l.Error})
		}
	}
	if len(unverified) > 0 {
		PrintTable(w, []string{"family", "leaf", "error"}, unverified)
		fmt.Fprintln(w)
	}

	s := r.Summary()
	PrintDetail(w, map[string]any{
		"run":           r.RunID.String(),
		"leaves":        s.Leaves,
		"consistent":    s.Consistent,
		"inconsistent":  s.Inconsistent,
		"unverified":    s.Unverified,
		"discrepancies": s.Discrepancies,
		"duration":      r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
		"interrupted":   r.Interrupted,
	})
	return nil
}
