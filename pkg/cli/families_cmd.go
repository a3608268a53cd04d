package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"nadc-check/internal/domain"
	"nadc-check/internal/report"
)

func newFamiliesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the configured archive families",
		Long: `List every configured family with its catalog, pools, hierarchy and
comparison policy. Families with the count policy only verify that the
number of files per leaf matches the number of catalog records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			families, err := a.cfg.BuildFamilies()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.format(out) == report.FormatJSON {
				return report.PrintJSON(out, familyViews(families))
			}

			rows := make([][]string, 0, len(families))
			for _, d := range families {
				rows = append(rows, []string{
					d.Name,
					d.Catalog,
					string(d.Policy),
					levels(d.Hierarchy),
					strings.Join(d.LeafPatterns, ","),
					strings.Join(d.PoolRoots, ","),
				})
			}
			report.PrintTable(out, []string{"name", "catalog", "policy", "hierarchy", "patterns", "pools"}, rows)
			return nil
		},
	}
}

type familyView struct {
	Name        string   `json:"name"`
	Preset      string   `json:"preset"`
	Catalog     string   `json:"catalog"`
	Policy      string   `json:"policy"`
	KeyRule     string   `json:"key_rule"`
	Level       string   `json:"level,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Hierarchy   []string `json:"hierarchy"`
	Patterns    []string `json:"patterns"`
	Pools       []string `json:"pools"`
}

func familyViews(families []domain.FamilyDescriptor) []familyView {
	views := make([]familyView, 0, len(families))
	for _, d := range families {
		hierarchy := make([]string, 0, len(d.Hierarchy))
		for _, h := range d.Hierarchy {
			hierarchy = append(hierarchy, string(h))
		}
		views = append(views, familyView{
			Name:        d.Name,
			Preset:      d.Preset,
			Catalog:     d.Catalog,
			Policy:      string(d.Policy),
			KeyRule:     string(d.KeyRule),
			Level:       d.Level,
			ProductType: d.ProductType,
			Hierarchy:   hierarchy,
			Patterns:    d.LeafPatterns,
			Pools:       d.PoolRoots,
		})
	}
	return views
}

func levels(kinds []domain.LevelKind) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, "/")
}
