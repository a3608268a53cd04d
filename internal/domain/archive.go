package domain

// LeafLocation is one visited leaf directory together with the hierarchy
// values collected while descending to it.
type LeafLocation struct {
	Family string
	Path   string
	Fields map[LevelKind]string
	Files  []DiscoveredFile
}

// Field returns the value captured for the given level, if any.
func (l LeafLocation) Field(kind LevelKind) (string, bool) {
	v, ok := l.Fields[kind]
	return v, ok
}

// DiscoveredFile is a candidate product file found in a leaf directory.
type DiscoveredFile struct {
	Name string // base name as listed on disk
	Path string // full path, leaf path joined with Name
}
