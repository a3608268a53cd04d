// Package family builds and validates archive family descriptors and derives
// catalog keys from the files they describe.
package family

import (
	"path"
	"path/filepath"
	"sort"

	"nadc-check/internal/domain"
)

// Preset names.
const (
	PresetSciaVersioned = "scia-versioned"
	PresetSciaDated     = "scia-dated"
	PresetGosatFTS      = "gosat-fts-l1"
	PresetGosatCAI      = "gosat-cai-l2"
)

// Preset is the fixed layout and key rule shared by all families of one kind.
type Preset struct {
	Hierarchy    []domain.LevelKind
	LeafPatterns []string
	KeyRule      domain.KeyRule
	Policy       domain.PolicyKind
	ProductType  string
}

var presets = map[string]Preset{
	PresetSciaVersioned: {
		Hierarchy:    []domain.LevelKind{domain.LevelVersion},
		LeafPatterns: []string{"*.N1", "*.N1.gz"},
		KeyRule:      domain.KeyStripCompression,
		Policy:       domain.PolicyIdentity,
	},
	PresetSciaDated: {
		Hierarchy:    []domain.LevelKind{domain.LevelYear, domain.LevelMonth, domain.LevelDay},
		LeafPatterns: []string{"*.N1", "*.N1.gz"},
		KeyRule:      domain.KeyStripCompression,
		Policy:       domain.PolicyIdentity,
	},
	PresetGosatFTS: {
		Hierarchy: []domain.LevelKind{
			domain.LevelObsMode, domain.LevelProdVersion,
			domain.LevelYear, domain.LevelMonth, domain.LevelDay,
		},
		LeafPatterns: []string{"*.h5"},
		KeyRule:      domain.KeyDateFilter,
		Policy:       domain.PolicyCount,
		ProductType:  "tfts_1",
	},
	PresetGosatCAI: {
		Hierarchy:    []domain.LevelKind{domain.LevelSensor, domain.LevelYear, domain.LevelMonth, domain.LevelDay},
		LeafPatterns: []string{"*.h5"},
		KeyRule:      domain.KeyDateFilter,
		Policy:       domain.PolicyCount,
		ProductType:  "tcai_2",
	},
}

// Presets returns the names of all known presets, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Spec is the configurable part of a family: which preset it follows, where
// its pools live and which catalog indexes it.
type Spec struct {
	Name      string
	Preset    string
	Catalog   string
	PoolRoots []string
	Level     string

	// Optional overrides of the preset.
	Hierarchy    []domain.LevelKind
	LeafPatterns []string
}

// New builds a validated, immutable family descriptor.
func New(spec Spec) (domain.FamilyDescriptor, error) {
	p, ok := presets[spec.Preset]
	if !ok {
		return domain.FamilyDescriptor{}, domain.ErrConfig("family %q: unknown preset %q", spec.Name, spec.Preset)
	}

	d := domain.FamilyDescriptor{
		Name:         spec.Name,
		Preset:       spec.Preset,
		Catalog:      spec.Catalog,
		PoolRoots:    append([]string(nil), spec.PoolRoots...),
		Hierarchy:    append([]domain.LevelKind(nil), p.Hierarchy...),
		LeafPatterns: append([]string(nil), p.LeafPatterns...),
		KeyRule:      p.KeyRule,
		Policy:       p.Policy,
		Level:        spec.Level,
		ProductType:  p.ProductType,
	}
	if spec.Hierarchy != nil {
		d.Hierarchy = append([]domain.LevelKind(nil), spec.Hierarchy...)
	}
	if len(spec.LeafPatterns) > 0 {
		d.LeafPatterns = append([]string(nil), spec.LeafPatterns...)
	}

	if err := Validate(d); err != nil {
		return domain.FamilyDescriptor{}, err
	}
	return d, nil
}

// Validate checks a descriptor for internal consistency.
func Validate(d domain.FamilyDescriptor) error {
	if d.Name == "" {
		return domain.ErrConfig("family name is required")
	}
	if d.Catalog == "" {
		return domain.ErrConfig("family %q: catalog name is required", d.Name)
	}
	if len(d.PoolRoots) == 0 {
		return domain.ErrConfig("family %q: at least one pool root is required", d.Name)
	}
	for _, root := range d.PoolRoots {
		if !filepath.IsAbs(root) {
			return domain.ErrConfig("family %q: pool root %q is not an absolute path", d.Name, root)
		}
	}
	if len(d.Hierarchy) == 0 {
		return domain.ErrConfig("family %q: hierarchy is empty", d.Name)
	}
	seen := make(map[domain.LevelKind]bool, len(d.Hierarchy))
	for _, kind := range d.Hierarchy {
		if !kind.Valid() {
			return domain.ErrConfig("family %q: unknown hierarchy level %q", d.Name, kind)
		}
		if seen[kind] {
			return domain.ErrConfig("family %q: hierarchy level %q appears twice", d.Name, kind)
		}
		seen[kind] = true
	}
	if len(d.LeafPatterns) == 0 {
		return domain.ErrConfig("family %q: no leaf pattern", d.Name)
	}
	for _, pattern := range d.LeafPatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return domain.ErrConfig("family %q: bad leaf pattern %q: %v", d.Name, pattern, err)
		}
	}
	switch d.Level {
	case "", "0", "1", "2":
	default:
		return domain.ErrConfig("family %q: level must be 0, 1 or 2, got %q", d.Name, d.Level)
	}

	switch d.KeyRule {
	case domain.KeyStripCompression:
		if d.Policy != domain.PolicyIdentity {
			return domain.ErrConfig("family %q: %s keys require the identity policy", d.Name, d.KeyRule)
		}
	case domain.KeyDateFilter:
		if d.Policy != domain.PolicyCount {
			return domain.ErrConfig("family %q: %s keys require the count policy", d.Name, d.KeyRule)
		}
		for _, kind := range []domain.LevelKind{domain.LevelYear, domain.LevelMonth, domain.LevelDay} {
			if !d.HasLevel(kind) {
				return domain.ErrConfig("family %q: date filter needs a %s level", d.Name, kind)
			}
		}
		if d.ProductType == "" {
			return domain.ErrConfig("family %q: date filter needs a product type", d.Name)
		}
	default:
		return domain.ErrConfig("family %q: unknown key rule %q", d.Name, d.KeyRule)
	}
	return nil
}

// Matches reports whether a filename matches any of the family's leaf patterns.
func Matches(d domain.FamilyDescriptor, name string) bool {
	for _, pattern := range d.LeafPatterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
