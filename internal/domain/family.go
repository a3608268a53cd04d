package domain

// LevelKind names one directory level of an archive hierarchy.
type LevelKind string

// Hierarchy level kinds.
const (
	LevelVersion     LevelKind = "version"
	LevelSensor      LevelKind = "sensor"
	LevelObsMode     LevelKind = "obs_mode"
	LevelProdVersion LevelKind = "prod_version"
	LevelYear        LevelKind = "year"
	LevelMonth       LevelKind = "month"
	LevelDay         LevelKind = "day"
)

// Valid reports whether k is one of the known level kinds.
func (k LevelKind) Valid() bool {
	switch k {
	case LevelVersion, LevelSensor, LevelObsMode, LevelProdVersion, LevelYear, LevelMonth, LevelDay:
		return true
	}
	return false
}

// KeyRule selects how a catalog key is derived for a family.
type KeyRule string

// Key rules.
const (
	// KeyStripCompression uses the filename minus its compression suffix as
	// the exact product name.
	KeyStripCompression KeyRule = "strip-compression"
	// KeyDateFilter builds a coarse filter from the leaf's hierarchy fields.
	KeyDateFilter KeyRule = "date-filter"
)

// PolicyKind selects the comparison policy applied at each leaf.
type PolicyKind string

// Comparison policies.
const (
	// PolicyIdentity requires every discovered file's exact path in the catalog.
	PolicyIdentity PolicyKind = "identity"
	// PolicyCount only requires the file and record counts of a leaf to agree.
	PolicyCount PolicyKind = "count"
)

// CompressionSuffix is stripped from filenames of identity-keyed families.
const CompressionSuffix = ".gz"

// FamilyDescriptor is the declarative definition of one archive family.
// Descriptors are built once per run by family.New and never mutated.
type FamilyDescriptor struct {
	Name         string
	Preset       string
	Catalog      string
	PoolRoots    []string
	Hierarchy    []LevelKind
	LeafPatterns []string
	KeyRule      KeyRule
	Policy       PolicyKind

	// Level is the Sciamachy product level ("0", "1", "2") for exact-name
	// lookups. Empty means the catalog infers it from the product name.
	Level string
	// ProductType is the catalog type tag for filter lookups (e.g. "tfts_1").
	ProductType string
}

// Leaf returns the kind of the deepest hierarchy level.
func (d FamilyDescriptor) Leaf() LevelKind {
	if len(d.Hierarchy) == 0 {
		return ""
	}
	return d.Hierarchy[len(d.Hierarchy)-1]
}

// HasLevel reports whether the hierarchy contains the given level.
func (d FamilyDescriptor) HasLevel(kind LevelKind) bool {
	for _, k := range d.Hierarchy {
		if k == kind {
			return true
		}
	}
	return false
}
