package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DiscrepancyKind classifies a disagreement between disk and catalog.
type DiscrepancyKind string

// Discrepancy kinds.
const (
	DiscrepancyMissing       DiscrepancyKind = "MISSING"
	DiscrepancyCountMismatch DiscrepancyKind = "COUNT_MISMATCH"
)

// Discrepancy is one disagreement found at a leaf.
type Discrepancy struct {
	Family   string          `json:"family"`
	LeafPath string          `json:"leaf_path"`
	Kind     DiscrepancyKind `json:"kind"`
	Path     string          `json:"path,omitempty"` // file path, MISSING only
	Expected int             `json:"expected"`
	Actual   int             `json:"actual"`
	Detail   string          `json:"detail,omitempty"`
}

// LeafStatus is the outcome of reconciling one leaf.
type LeafStatus string

// Leaf outcomes. A leaf that could not be verified is never reported as consistent.
const (
	LeafConsistent   LeafStatus = "consistent"
	LeafInconsistent LeafStatus = "inconsistent"
	LeafUnverified   LeafStatus = "unverified"
)

// LeafResult is the reconciliation outcome for one leaf directory.
type LeafResult struct {
	Family        string        `json:"family"`
	Path          string        `json:"path"`
	Status        LeafStatus    `json:"status"`
	Files         int           `json:"files"`
	Records       int           `json:"records"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	Err           error         `json:"-"`
	Error         string        `json:"error,omitempty"`
}

// Summary counts leaf outcomes of a report.
type Summary struct {
	Leaves        int `json:"leaves"`
	Consistent    int `json:"consistent"`
	Inconsistent  int `json:"inconsistent"`
	Unverified    int `json:"unverified"`
	Discrepancies int `json:"discrepancies"`
}

// Report is the sole output artifact of a reconciliation run.
type Report struct {
	RunID       uuid.UUID    `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Families    []string     `json:"families"`
	Leaves      []LeafResult `json:"leaves"`
	Interrupted bool         `json:"interrupted"`
}

// NewReport creates an empty report for the given families.
func NewReport(families []string, now time.Time) *Report {
	return &Report{
		RunID:     uuid.New(),
		StartedAt: now,
		Families:  families,
	}
}

// HasDiscrepancies reports whether any leaf was found inconsistent.
func (r *Report) HasDiscrepancies() bool {
	for _, l := range r.Leaves {
		if len(l.Discrepancies) > 0 {
			return true
		}
	}
	return false
}

// HasUnverified reports whether any leaf could not be verified.
func (r *Report) HasUnverified() bool {
	for _, l := range r.Leaves {
		if l.Status == LeafUnverified {
			return true
		}
	}
	return false
}

// Discrepancies returns all discrepancies in report order.
func (r *Report) Discrepancies() []Discrepancy {
	var out []Discrepancy
	for _, l := range r.Leaves {
		out = append(out, l.Discrepancies...)
	}
	return out
}

// Summary counts the leaf outcomes.
func (r *Report) Summary() Summary {
	s := Summary{Leaves: len(r.Leaves)}
	for _, l := range r.Leaves {
		switch l.Status {
		case LeafConsistent:
			s.Consistent++
		case LeafInconsistent:
			s.Inconsistent++
		case LeafUnverified:
			s.Unverified++
		}
		s.Discrepancies += len(l.Discrepancies)
	}
	return s
}

// Sort orders leaves by family and path, and discrepancies by path.
// Emission order of a run is not significant; sorting makes output stable.
func (r *Report) Sort() {
	sort.SliceStable(r.Leaves, func(i, j int) bool {
		if r.Leaves[i].Family != r.Leaves[j].Family {
			return r.Leaves[i].Family < r.Leaves[j].Family
		}
		return r.Leaves[i].Path < r.Leaves[j].Path
	})
	for i := range r.Leaves {
		d := r.Leaves[i].Discrepancies
		sort.SliceStable(d, func(a, b int) bool { return d[a].Path < d[b].Path })
	}
}
