package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nadc-check/internal/archive"
	"nadc-check/internal/domain"
)

// DefaultWorkers is the number of leaves reconciled concurrently when the
// runner is not configured otherwise.
const DefaultWorkers = 4

// Runner walks families and reconciles their leaves on a bounded pool.
type Runner struct {
	walker     *archive.Walker
	reconciler *Reconciler
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

// RunnerDeps holds dependencies for Runner.
type RunnerDeps struct {
	Walker     *archive.Walker
	Reconciler *Reconciler
	Workers    int
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		walker:     deps.Walker,
		reconciler: deps.Reconciler,
		workers:    deps.Workers,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if r.workers < 1 {
		r.workers = DefaultWorkers
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.walker == nil {
		r.walker = archive.NewWalker(nil, r.logger)
	}
	return r
}

// Run reconciles every leaf of the given families and returns the report.
//
// A failing leaf never affects its siblings. When ctx is cancelled no new
// leaves are started, in-flight leaves finish, and the partial report is
// returned with Interrupted set together with ctx.Err(). Leaves are sorted
// by family and path; emission order carries no meaning.
func (r *Runner) Run(ctx context.Context, families ...domain.FamilyDescriptor) (*domain.Report, error) {
	names := make([]string, 0, len(families))
	for _, d := range families {
		names = append(names, d.Name)
	}
	report := domain.NewReport(names, r.now())

	var mu sync.Mutex
	collect := func(res domain.LeafResult) {
		mu.Lock()
		report.Leaves = append(report.Leaves, res)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

walk:
	for _, d := range families {
		r.logger.Info("walking family", "family", d.Name, "pools", len(d.PoolRoots))
		for leaf, err := range r.walker.Walk(ctx, d) {
			if err != nil {
				r.logger.Warn("leaf unreadable", "family", d.Name, "leaf", leaf.Path, "error", err)
				collect(Unverified(d.Name, leaf.Path, err))
				continue
			}
			if ctx.Err() != nil {
				break walk
			}
			g.Go(func() error {
				collect(r.reconciler.Reconcile(ctx, d, leaf))
				return nil
			})
		}
		if ctx.Err() != nil {
			break
		}
	}

	_ = g.Wait()
	report.FinishedAt = r.now()
	report.Sort()

	s := report.Summary()
	if err := ctx.Err(); err != nil {
		report.Interrupted = true
		r.logger.Warn("reconciliation interrupted", "leaves", s.Leaves, "discrepancies", s.Discrepancies, "error", err)
		return report, err
	}

	r.logger.Info("reconciliation finished",
		"run_id", report.RunID,
		"leaves", s.Leaves,
		"consistent", s.Consistent,
		"inconsistent", s.Inconsistent,
		"unverified", s.Unverified,
		"discrepancies", s.Discrepancies,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}
