package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nadc-check/internal/domain"
	"nadc-check/internal/report"
	"nadc-check/internal/service/catalog"
)

func newLookupCmd(a *app) *cobra.Command {
	opts := &lookupOptions{}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Query a product catalog directly",
	}
	cmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "Name of the configured catalog to query (required)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Log the SQL statements sent to the catalog")
	cmd.PersistentFlags().BoolVar(&opts.dump, "dump", false, "Print every column of the matching records instead of their paths")
	_ = cmd.MarkPersistentFlagRequired("catalog")

	cmd.AddCommand(newLookupNameCmd(a, opts))
	cmd.AddCommand(newLookupTypeCmd(a, opts))
	return cmd
}

// lookupOptions are the flags shared by the lookup subcommands.
type lookupOptions struct {
	catalog string
	debug   bool
	dump    bool
}

func newLookupNameCmd(a *app, opts *lookupOptions) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "name <product>",
		Short: "Look up a product by its exact name",
		Long: `Look up a product by its exact name and print the full path of every
matching record. For Sciamachy catalogs the product level is taken from
--level or inferred from the name prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := domain.CatalogQuery{Name: args[0], Level: level}
			return a.lookup(cmd, opts, q)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Sciamachy product level (0, 1 or 2)")
	return cmd
}

func newLookupTypeCmd(a *app, opts *lookupOptions) *cobra.Command {
	var filter domain.CatalogFilter

	cmd := &cobra.Command{
		Use:   "type <type>",
		Short: "Select products by type and date",
		Long: `Select products by type and print the full path of every matching record.
The type is a Sciamachy level (0, 1, 2) or a GOSAT product type (tfts_1,
tcai_2). --date accepts yyyy, yyyymm, yyyymmdd, yyyymmddhh or yyyymmddhhmm
and selects the products starting within that period. --rtime selects the
products received within the last 1h to 23h or 1d to 7d.

Sciamachy catalogs also select on absolute orbit (--orbit n or --orbit
first,last), on processing stage (--proc) and, with --best, keep only the
highest processing stage of every orbit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Type = args[0]
			f := filter
			return a.lookup(cmd, opts, domain.CatalogQuery{Filter: &f})
		},
	}
	cmd.Flags().StringVar(&filter.Date, "date", "", "Start date period, yyyy[mm[dd[hh[mm]]]]")
	cmd.Flags().StringVar(&filter.Received, "rtime", "", "Received within the last Nh (1-23) or Nd (1-7)")
	cmd.Flags().StringVar(&filter.ObsMode, "obs-mode", "", "Observation mode (tfts_1 only)")
	cmd.Flags().StringVar(&filter.ProdVersion, "prod-version", "", "Product version (tfts_1 only)")
	cmd.Flags().IntSliceVar(&filter.Orbits, "orbit", nil, "Absolute orbit or first,last range (Sciamachy only)")
	cmd.Flags().StringSliceVar(&filter.ProcStages, "proc", nil, "Processing stages, e.g. U,W (Sciamachy only)")
	cmd.Flags().BoolVar(&filter.Best, "best", false, "Keep the highest processing stage per orbit (Sciamachy only)")
	return cmd
}

// lookup runs a single catalog query and prints the matching records.
func (a *app) lookup(cmd *cobra.Command, opts *lookupOptions, q domain.CatalogQuery) error {
	catalogName := opts.catalog
	src, err := a.source(catalogName)
	if err != nil {
		return err
	}

	logger := a.logger
	if opts.debug {
		logger = newLogger(cmd.ErrOrStderr(), slog.LevelDebug, a.cfg.LogFormat)
	}

	reg, err := catalog.Open([]catalog.Source{src}, catalog.OpenOptions{Host: a.cfg.Hostname, MaxOpen: 1}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	guarded := catalog.NewGuarded(reg, catalog.GuardConfig{Timeout: a.cfg.QueryTimeout})
	if opts.dump {
		rows, err := guarded.Dump(cmd.Context(), catalogName, q)
		if err != nil {
			return err
		}
		logger.Debug("lookup finished", "catalog", catalogName, "query", q.String(), "records", len(rows))
		return a.printRows(cmd.OutOrStdout(), catalogName, q, rows)
	}

	records, err := guarded.Query(cmd.Context(), catalogName, q)
	if err != nil {
		return err
	}
	logger.Debug("lookup finished", "catalog", catalogName, "query", q.String(), "records", len(records))

	out := cmd.OutOrStdout()
	if a.format(out) == report.FormatJSON {
		return report.PrintJSON(out, map[string]any{
			"catalog": catalogName,
			"query":   q.String(),
			"records": records,
		})
	}
	for _, rec := range records {
		if _, err := fmt.Fprintln(out, rec); err != nil {
			return err
		}
	}
	return nil
}

// printRows writes dumped records as JSON or as column/value blocks separated
// by a blank line.
func (a *app) printRows(out io.Writer, catalogName string, q domain.CatalogQuery, rows []domain.CatalogRow) error {
	if a.format(out) == report.FormatJSON {
		return report.PrintJSON(out, map[string]any{
			"catalog": catalogName,
			"query":   q.String(),
			"records": rows,
		})
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, row := range rows {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		for j, col := range row.Columns {
			_, _ = fmt.Fprintf(tw, "%s\t%v\n", col, row.Values[j])
		}
	}
	return tw.Flush()
}
