package family

import (
	"fmt"
	"strings"

	"nadc-check/internal/domain"
)

// DeriveKey maps a file at a leaf to its catalog query.
//
// Identity-keyed families look up the filename without its compression
// suffix. Filter-keyed families ignore the filename: every file at a leaf
// shares the leaf's date filter.
func DeriveKey(d domain.FamilyDescriptor, leaf domain.LeafLocation, filename string) (domain.CatalogQuery, error) {
	switch d.KeyRule {
	case domain.KeyStripCompression:
		return domain.CatalogQuery{
			Name:  strings.TrimSuffix(filename, domain.CompressionSuffix),
			Level: d.Level,
		}, nil
	case domain.KeyDateFilter:
		return LeafQuery(d, leaf)
	default:
		return domain.CatalogQuery{}, &domain.KeyDerivationError{
			Family: d.Name, Path: leaf.Path, Reason: "unknown key rule " + string(d.KeyRule),
		}
	}
}

// LeafQuery builds the single per-leaf filter of a filter-keyed family.
func LeafQuery(d domain.FamilyDescriptor, leaf domain.LeafLocation) (domain.CatalogQuery, error) {
	if d.KeyRule != domain.KeyDateFilter {
		return domain.CatalogQuery{}, &domain.KeyDerivationError{
			Family: d.Name, Path: leaf.Path, Reason: "family is not filter-keyed",
		}
	}

	date, err := leafDate(d, leaf)
	if err != nil {
		return domain.CatalogQuery{}, err
	}
	f := &domain.CatalogFilter{Type: d.ProductType, Date: date}

	if d.HasLevel(domain.LevelObsMode) {
		v, err := requireField(d, leaf, domain.LevelObsMode)
		if err != nil {
			return domain.CatalogQuery{}, err
		}
		f.ObsMode = v
	}
	if d.HasLevel(domain.LevelProdVersion) {
		v, err := requireField(d, leaf, domain.LevelProdVersion)
		if err != nil {
			return domain.CatalogQuery{}, err
		}
		f.ProdVersion = v
	}
	return domain.CatalogQuery{Filter: f}, nil
}

func leafDate(d domain.FamilyDescriptor, leaf domain.LeafLocation) (string, error) {
	widths := []struct {
		kind  domain.LevelKind
		width int
	}{
		{domain.LevelYear, 4},
		{domain.LevelMonth, 2},
		{domain.LevelDay, 2},
	}
	var b strings.Builder
	for _, w := range widths {
		v, err := requireField(d, leaf, w.kind)
		if err != nil {
			return "", err
		}
		if len(v) != w.width || !isDigits(v) {
			return "", &domain.KeyDerivationError{
				Family: d.Name, Path: leaf.Path, Field: w.kind,
				Reason: fmt.Sprintf("value %q is not a %d-digit number", v, w.width),
			}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func requireField(d domain.FamilyDescriptor, leaf domain.LeafLocation, kind domain.LevelKind) (string, error) {
	v, ok := leaf.Field(kind)
	if !ok || v == "" {
		return "", &domain.KeyDerivationError{Family: d.Name, Path: leaf.Path, Field: kind, Reason: "is missing"}
	}
	return v, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
