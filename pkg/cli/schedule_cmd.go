package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"nadc-check/internal/domain"
	"nadc-check/internal/service/schedule"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		spec      string
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "schedule --cron <expr> [family...]",
		Short: "Run check periodically",
		Long: `Run check on a cron schedule until interrupted. Each run logs its summary;
with --report-dir the JSON report of every run is kept as a file. A run still
in progress when the next one is due skips that tick.

The schedule is a five-field cron expression or a descriptor such as
"@daily" or "@every 6h".`,
		ValidArgsFunction: a.completeFamilies,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fail on unknown families now rather than at the first tick.
			if _, err := a.cfg.BuildFamilies(args...); err != nil {
				return err
			}
			if reportDir != "" {
				if err := os.MkdirAll(reportDir, 0o750); err != nil {
					return fmt.Errorf("create report dir: %w", err)
				}
			}

			s := schedule.NewScheduler(a.logger)
			if err := s.Add("check", spec, a.scheduledCheck(args, reportDir)); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron schedule (required)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory receiving one JSON report per run")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

// scheduledCheck returns the job run at every tick.
func (a *app) scheduledCheck(names []string, reportDir string) schedule.Job {
	return func(ctx context.Context) error {
		r, err := a.check(ctx, names)
		if r == nil {
			return err
		}
		if reportDir != "" {
			path := filepath.Join(reportDir, reportFileName(r))
			if werr := writeReportFile(path, r); werr != nil {
				return werr
			}
		}

		s := r.Summary()
		a.logger.Info("check summary",
			"run_id", r.RunID, "leaves", s.Leaves, "consistent", s.Consistent,
			"inconsistent", s.Inconsistent, "unverified", s.Unverified, "discrepancies", s.Discrepancies)
		if err != nil {
			return err
		}
		if r.HasDiscrepancies() {
			return fmt.Errorf("%d discrepancies found", s.Discrepancies)
		}
		return nil
	}
}

func reportFileName(r *domain.Report) string {
	return fmt.Sprintf("nadc-check-%s-%s.json", r.StartedAt.UTC().Format("20060102T150405Z"), r.RunID.String()[:8])
}
