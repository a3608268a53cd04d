package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nadc-check/internal/archive"
	"nadc-check/internal/config"
	"nadc-check/internal/domain"
	"nadc-check/internal/report"
	"nadc-check/internal/service/catalog"
	"nadc-check/internal/service/reconcile"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		workers    int
		timeout    time.Duration
		reportFile string
	)

	cmd := &cobra.Command{
		Use:   "check [family...]",
		Short: "Reconcile archive families against their catalogs",
		Long: `Walk the pools of the named families (all configured families when none are
given) and compare every leaf directory with the catalog. The report is
written to stdout; discrepancies and unverified leaves set the exit code.`,
		ValidArgsFunction: a.completeFamilies,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				a.cfg.Workers = workers
			}
			if cmd.Flags().Changed("query-timeout") {
				a.cfg.QueryTimeout = timeout
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, runErr := a.check(ctx, args)
			if r == nil {
				return runErr
			}
			if reportFile != "" {
				if err := writeReportFile(reportFile, r); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if err := report.Write(out, a.format(out), r); err != nil {
				return err
			}
			if runErr != nil {
				return &exitCodeError{code: ExitFatal, err: fmt.Errorf("run interrupted: %w", runErr)}
			}
			return exitStatus(r)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of leaves reconciled concurrently (env: NADC_WORKERS)")
	cmd.Flags().DurationVar(&timeout, "query-timeout", 0, "Timeout of a single catalog query (env: NADC_QUERY_TIMEOUT)")
	cmd.Flags().StringVar(&reportFile, "report-file", "", "Also write the JSON report to this file")
	return cmd
}

// check runs one reconciliation of the named families. The report is nil
// only when the run could not start.
func (a *app) check(ctx context.Context, names []string) (*domain.Report, error) {
	families, err := a.cfg.BuildFamilies(names...)
	if err != nil {
		return nil, err
	}

	reg, err := a.openCatalogs(families)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			a.logger.Warn("close catalogs", "error", err)
		}
	}()

	guarded := catalog.NewGuarded(reg, catalog.GuardConfig{
		Timeout:           a.cfg.QueryTimeout,
		RequestsPerSecond: a.cfg.QueryRPS,
		Burst:             a.cfg.QueryBurst,
	})
	runner := reconcile.NewRunner(reconcile.RunnerDeps{
		Walker:     archive.NewWalker(archive.OSFS{}, a.logger),
		Reconciler: reconcile.NewReconciler(guarded, a.logger),
		Workers:    a.cfg.Workers,
		Logger:     a.logger,
	})
	return runner.Run(ctx, families...)
}

// openCatalogs opens the catalogs referenced by families, each once.
func (a *app) openCatalogs(families []domain.FamilyDescriptor) (*catalog.Registry, error) {
	seen := make(map[string]bool)
	var sources []catalog.Source
	for _, d := range families {
		if seen[d.Catalog] {
			continue
		}
		seen[d.Catalog] = true
		src, err := a.source(d.Catalog)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return catalog.Open(sources, catalog.OpenOptions{Host: a.cfg.Hostname, MaxOpen: a.cfg.Workers}, a.logger)
}

func (a *app) source(name string) (catalog.Source, error) {
	c, ok := a.cfg.Catalogs[name]
	if !ok {
		return catalog.Source{}, domain.ErrConfig("catalog %q is not configured", name)
	}
	return catalog.Source{Name: name, Kind: c.Kind, Path: c.Path}, nil
}

func (a *app) completeFamilies(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg := a.cfg
	if cfg == nil {
		// Completion runs without the root pre-run.
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		cfg = loaded
	}
	used := make(map[string]bool, len(args))
	for _, arg := range args {
		used[arg] = true
	}
	var names []string
	for _, f := range cfg.Families {
		if !used[f.Name] {
			names = append(names, f.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
