package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	internaldb "nadc-check/internal/db"
	"nadc-check/internal/domain"
	"nadc-check/internal/report"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage catalog databases",
	}
	cmd.AddCommand(newCatalogInitCmd(a))
	return cmd
}

func newCatalogInitCmd(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Create an empty catalog database",
		Long: `Create a new SQLite catalog with the Sciamachy or GOSAT schema. An existing
file is never touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := initCatalog(path, kind); err != nil {
				return err
			}
			a.logger.Info("catalog created", "path", path, "kind", kind)

			out := cmd.OutOrStdout()
			if a.format(out) == report.FormatJSON {
				return report.PrintJSON(out, map[string]string{"path": path, "kind": kind})
			}
			_, _ = fmt.Fprintf(out, "Created %s catalog %s\n", kind, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Catalog schema: scia or gosat (required)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func initCatalog(path, kind string) (err error) {
	if kind != internaldb.KindScia && kind != internaldb.KindGosat {
		return domain.ErrConfig("unknown catalog kind %q: use %q or %q", kind, internaldb.KindScia, internaldb.KindGosat)
	}
	if _, err := os.Stat(path); err == nil {
		return domain.ErrConfig("refusing to initialise %s: file exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	db, err := internaldb.OpenSQLite(path, internaldb.ModeWrite, 1)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close catalog: %w", cerr)
		}
	}()

	if err := internaldb.RunMigrations(db, kind); err != nil {
		return fmt.Errorf("initialise %s catalog: %w", kind, err)
	}
	return nil
}
