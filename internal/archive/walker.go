// Package archive enumerates the leaf directories of an archive family.
package archive

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"nadc-check/internal/domain"
	"nadc-check/internal/family"
)

// FS is the directory-listing primitive the walker needs.
type FS interface {
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
}

// OSFS reads the local filesystem.
type OSFS struct{}

// ReadDir implements FS.
func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// Stat implements FS.
func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// Walker descends family hierarchies and yields leaf locations.
type Walker struct {
	fs     FS
	logger *slog.Logger
}

// NewWalker creates a Walker. A nil fsys reads the local filesystem.
func NewWalker(fsys FS, logger *slog.Logger) *Walker {
	if fsys == nil {
		fsys = OSFS{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Walker{fs: fsys, logger: logger}
}

// Walk returns a lazy, single-pass sequence of the family's leaves.
//
// Entries that are not directories are skipped at every level. A directory
// that does not exist is treated like an empty one. A directory that exists
// but cannot be read is yielded with a *domain.FilesystemError and the walk
// continues with its siblings. The sequence ends early when ctx is done.
func (w *Walker) Walk(ctx context.Context, d domain.FamilyDescriptor) iter.Seq2[domain.LeafLocation, error] {
	return func(yield func(domain.LeafLocation, error) bool) {
		for _, root := range d.PoolRoots {
			if ctx.Err() != nil {
				return
			}
			ok, err := w.isDir(root)
			if err != nil {
				if !yield(w.location(d, root, nil), &domain.FilesystemError{Path: root, Err: err}) {
					return
				}
				continue
			}
			if !ok {
				w.logger.Debug("pool root absent", "family", d.Name, "pool", root)
				continue
			}
			if !w.descend(ctx, d, root, 0, nil, yield) {
				return
			}
		}
	}
}

// descend lists dir, whose children belong to hierarchy level depth.
func (w *Walker) descend(
	ctx context.Context,
	d domain.FamilyDescriptor,
	dir string,
	depth int,
	fields map[domain.LevelKind]string,
	yield func(domain.LeafLocation, error) bool,
) bool {
	if ctx.Err() != nil {
		return false
	}

	children, err := w.subdirs(dir)
	if err != nil {
		return yield(w.location(d, dir, fields), &domain.FilesystemError{Path: dir, Err: err})
	}

	kind := d.Hierarchy[depth]
	last := depth == len(d.Hierarchy)-1
	for _, c := range children {
		child := filepath.Join(dir, c.name)
		childFields := with(fields, kind, c.name)

		if c.err != nil {
			if !yield(w.location(d, child, childFields), &domain.FilesystemError{Path: child, Err: c.err}) {
				return false
			}
			continue
		}
		if !last {
			if !w.descend(ctx, d, child, depth+1, childFields, yield) {
				return false
			}
			continue
		}

		if ctx.Err() != nil {
			return false
		}
		leaf := w.location(d, child, childFields)
		files, found, err := w.leafFiles(d, child)
		switch {
		case err != nil:
			if !yield(leaf, &domain.FilesystemError{Path: child, Err: err}) {
				return false
			}
		case !found:
			// Removed between listing its parent and reading it.
			continue
		default:
			leaf.Files = files
			if !yield(leaf, nil) {
				return false
			}
		}
	}
	return true
}

// subdir is a directory entry of a hierarchy level. err is set when the entry
// is a link whose target exists but cannot be resolved.
type subdir struct {
	name string
	err  error
}

// subdirs returns the directories in dir sorted by name. A missing dir has no
// children and a dangling link is not a child.
func (w *Walker) subdirs(dir string) ([]subdir, error) {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []subdir
	for _, e := range entries {
		ok, err := w.entryIsDir(dir, e)
		switch {
		case err != nil && isAbsent(err):
			w.logger.Debug("skip dangling link", "path", filepath.Join(dir, e.Name()), "error", err)
		case err != nil:
			out = append(out, subdir{name: e.Name(), err: err})
		case ok:
			out = append(out, subdir{name: e.Name()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// leafFiles lists the regular files in a leaf that match the family patterns.
func (w *Walker) leafFiles(d domain.FamilyDescriptor, dir string) ([]domain.DiscoveredFile, bool, error) {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		if isAbsent(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	files := make([]domain.DiscoveredFile, 0, len(entries))
	for _, e := range entries {
		if !family.Matches(d, e.Name()) {
			continue
		}
		ok, err := w.entryIsRegular(dir, e)
		if err != nil || !ok {
			continue
		}
		files = append(files, domain.DiscoveredFile{Name: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, true, nil
}

func (w *Walker) isDir(path string) (bool, error) {
	info, err := w.fs.Stat(path)
	if err != nil {
		if isAbsent(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// entryIsDir follows symbolic links, matching a shell "-d" test.
func (w *Walker) entryIsDir(dir string, e fs.DirEntry) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := w.fs.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (w *Walker) entryIsRegular(dir string, e fs.DirEntry) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular(), nil
	}
	info, err := w.fs.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (w *Walker) location(d domain.FamilyDescriptor, path string, fields map[domain.LevelKind]string) domain.LeafLocation {
	return domain.LeafLocation{Family: d.Name, Path: path, Fields: fields}
}

func with(fields map[domain.LevelKind]string, kind domain.LevelKind, value string) map[domain.LevelKind]string {
	out := make(map[domain.LevelKind]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[kind] = value
	return out
}

func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
