package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadc-check/internal/domain"
	"nadc-check/internal/family"
)

// failingFS wraps the OS filesystem and fails ReadDir or Stat for selected
// paths.
type failingFS struct {
	OSFS
	fail     map[string]error
	statFail map[string]error
}

func (f failingFS) Stat(name string) (fs.FileInfo, error) {
	if err, ok := f.statFail[name]; ok {
		return nil, err
	}
	return f.OSFS.Stat(name)
}

func (f failingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if err, ok := f.fail[name]; ok {
		return nil, err
	}
	return f.OSFS.ReadDir(name)
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func sciaFamily(t *testing.T, roots ...string) domain.FamilyDescriptor {
	t.Helper()
	d, err := family.New(family.Spec{Name: "scia", Preset: family.PresetSciaVersioned, Catalog: "scia", PoolRoots: roots})
	require.NoError(t, err)
	return d
}

type walked struct {
	leaves []domain.LeafLocation
	errs   []error
}

func collect(t *testing.T, w *Walker, d domain.FamilyDescriptor) walked {
	t.Helper()
	var out walked
	for leaf, err := range w.Walk(context.Background(), d) {
		if err != nil {
			out.errs = append(out.errs, err)
			continue
		}
		out.leaves = append(out.leaves, leaf)
	}
	return out
}

func leafPaths(leaves []domain.LeafLocation) []string {
	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, l.Path)
	}
	return out
}

func fileNames(files []domain.DiscoveredFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestWalk_VersionedLayout(t *testing.T) {
	root := t.TempDir()
	pool1 := filepath.Join(root, "LV1_01")
	pool2 := filepath.Join(root, "LV1_02")
	touch(t,
		filepath.Join(pool1, "v8", "B.N1.gz"),
		filepath.Join(pool1, "v8", "A.N1"),
		filepath.Join(pool1, "v8", "notes.txt"),
		filepath.Join(pool1, "v7", "C.N1.gz"),
		filepath.Join(pool2, "v8", "D.N1"),
		// stray file at the version level
		filepath.Join(pool1, "README"),
	)
	mkdirs(t, filepath.Join(pool1, "v9"))

	w := NewWalker(nil, nil)
	got := collect(t, w, sciaFamily(t, pool1, pool2))

	require.Empty(t, got.errs)
	assert.Equal(t, []string{
		filepath.Join(pool1, "v7"),
		filepath.Join(pool1, "v8"),
		filepath.Join(pool1, "v9"),
		filepath.Join(pool2, "v8"),
	}, leafPaths(got.leaves))

	v8 := got.leaves[1]
	assert.Equal(t, "scia", v8.Family)
	assert.Equal(t, map[domain.LevelKind]string{domain.LevelVersion: "v8"}, v8.Fields)
	assert.Equal(t, []string{"A.N1", "B.N1.gz"}, fileNames(v8.Files))
	assert.Equal(t, filepath.Join(pool1, "v8", "B.N1.gz"), v8.Files[1].Path)

	// Empty leaf is still emitted, with no files.
	assert.Empty(t, got.leaves[2].Files)
}

func TestWalk_DatedLayoutCapturesFields(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	touch(t,
		filepath.Join(pool, "SPOD", "160160", "2024", "03", "05", "a.h5"),
		filepath.Join(pool, "SPOD", "160160", "2024", "03", "05", "b.h5"),
		filepath.Join(pool, "OB1D", "161161", "2023", "12", "31", "c.h5"),
	)

	d, err := family.New(family.Spec{Name: "fts", Preset: family.PresetGosatFTS, Catalog: "gosat", PoolRoots: []string{pool}})
	require.NoError(t, err)

	got := collect(t, NewWalker(nil, nil), d)
	require.Empty(t, got.errs)
	require.Len(t, got.leaves, 2)

	assert.Equal(t, map[domain.LevelKind]string{
		domain.LevelObsMode:     "OB1D",
		domain.LevelProdVersion: "161161",
		domain.LevelYear:        "2023",
		domain.LevelMonth:       "12",
		domain.LevelDay:         "31",
	}, got.leaves[0].Fields)
	assert.Equal(t, []string{"a.h5", "b.h5"}, fileNames(got.leaves[1].Files))
}

func TestWalk_StrayFilesAtEveryLevelAreSkipped(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV2_01")
	touch(t,
		filepath.Join(pool, "CAI_L2", "2024", "03", "05", "x.h5"),
		filepath.Join(pool, "stray.txt"),
		filepath.Join(pool, "CAI_L2", "stray.txt"),
		filepath.Join(pool, "CAI_L2", "2024", "stray.txt"),
		filepath.Join(pool, "CAI_L2", "2024", "03", "stray.h5"),
	)

	d, err := family.New(family.Spec{Name: "cai", Preset: family.PresetGosatCAI, Catalog: "gosat", PoolRoots: []string{pool}})
	require.NoError(t, err)

	got := collect(t, NewWalker(nil, nil), d)
	require.Empty(t, got.errs)
	assert.Equal(t, []string{filepath.Join(pool, "CAI_L2", "2024", "03", "05")}, leafPaths(got.leaves))
	assert.Equal(t, []string{"x.h5"}, fileNames(got.leaves[0].Files))
}

func TestWalk_AbsentDirectoriesYieldNothing(t *testing.T) {
	root := t.TempDir()
	present := filepath.Join(root, "LV2_01")
	// The day level under 2024/03 is missing entirely.
	mkdirs(t, filepath.Join(present, "CAI_L2", "2024", "03"))

	d, err := family.New(family.Spec{
		Name: "cai", Preset: family.PresetGosatCAI, Catalog: "gosat",
		PoolRoots: []string{filepath.Join(root, "does-not-exist"), present},
	})
	require.NoError(t, err)

	got := collect(t, NewWalker(nil, nil), d)
	assert.Empty(t, got.errs)
	assert.Empty(t, got.leaves)
}

func TestWalk_PoolRootIsAFile(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	touch(t, pool)

	got := collect(t, NewWalker(nil, nil), sciaFamily(t, pool))
	assert.Empty(t, got.errs)
	assert.Empty(t, got.leaves)
}

func TestWalk_FollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	target := filepath.Join(root, "elsewhere", "v8")
	touch(t, filepath.Join(target, "A.N1"))
	touch(t, filepath.Join(root, "target.N1"))
	mkdirs(t, pool)
	require.NoError(t, os.Symlink(target, filepath.Join(pool, "v8")))
	require.NoError(t, os.Symlink(filepath.Join(root, "target.N1"), filepath.Join(target, "B.N1")))
	require.NoError(t, os.Symlink(filepath.Join(root, "dangling"), filepath.Join(pool, "v9")))

	got := collect(t, NewWalker(nil, nil), sciaFamily(t, pool))
	require.Empty(t, got.errs)
	require.Equal(t, []string{filepath.Join(pool, "v8")}, leafPaths(got.leaves))
	assert.Equal(t, []string{"A.N1", "B.N1"}, fileNames(got.leaves[0].Files))
}

func TestWalk_UnreadableDirectoryIsReported(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	touch(t,
		filepath.Join(pool, "v7", "A.N1"),
		filepath.Join(pool, "v8", "B.N1"),
	)

	fsys := failingFS{fail: map[string]error{
		filepath.Join(pool, "v7"): &fs.PathError{Op: "open", Path: filepath.Join(pool, "v7"), Err: syscall.EACCES},
	}}
	got := collect(t, NewWalker(fsys, nil), sciaFamily(t, pool))

	require.Len(t, got.errs, 1)
	var fsErr *domain.FilesystemError
	require.True(t, errors.As(got.errs[0], &fsErr))
	assert.Equal(t, filepath.Join(pool, "v7"), fsErr.Path)
	assert.True(t, errors.Is(got.errs[0], syscall.EACCES))

	// The sibling is still visited.
	assert.Equal(t, []string{filepath.Join(pool, "v8")}, leafPaths(got.leaves))
}

func TestWalk_UnresolvableSymlinkIsReported(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	touch(t,
		filepath.Join(root, "real", "v9", "A.N1"),
		filepath.Join(pool, "v8", "B.N1"),
	)
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "v9"), filepath.Join(pool, "v9")))

	link := filepath.Join(pool, "v9")
	fsys := failingFS{statFail: map[string]error{
		link: &fs.PathError{Op: "stat", Path: link, Err: syscall.EACCES},
	}}

	var unverified []domain.LeafLocation
	var errs []error
	var leaves []domain.LeafLocation
	for leaf, err := range NewWalker(fsys, nil).Walk(context.Background(), sciaFamily(t, pool)) {
		if err != nil {
			errs = append(errs, err)
			unverified = append(unverified, leaf)
			continue
		}
		leaves = append(leaves, leaf)
	}

	require.Len(t, errs, 1)
	var fsErr *domain.FilesystemError
	require.True(t, errors.As(errs[0], &fsErr))
	assert.Equal(t, link, fsErr.Path)
	assert.True(t, errors.Is(errs[0], syscall.EACCES))
	assert.Equal(t, link, unverified[0].Path)
	assert.Equal(t, "v9", unverified[0].Fields[domain.LevelVersion])
	assert.Equal(t, []string{filepath.Join(pool, "v8")}, leafPaths(leaves))
}

func TestWalk_UnreadableIntermediateDirectory(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV2_01")
	touch(t, filepath.Join(pool, "2024", "03", "05", "a.N1"))

	d, err := family.New(family.Spec{Name: "l2", Preset: family.PresetSciaDated, Catalog: "scia-lv2", PoolRoots: []string{pool}})
	require.NoError(t, err)

	fsys := failingFS{fail: map[string]error{
		filepath.Join(pool, "2024"): syscall.EIO,
	}}

	var leaves []domain.LeafLocation
	var errs []error
	for leaf, err := range NewWalker(fsys, nil).Walk(context.Background(), d) {
		if err != nil {
			errs = append(errs, err)
			leaves = append(leaves, leaf)
		}
	}
	require.Len(t, errs, 1)
	assert.Equal(t, filepath.Join(pool, "2024"), leaves[0].Path)
	assert.Equal(t, "l2", leaves[0].Family)
}

func TestWalk_StopsWhenConsumerBreaks(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	mkdirs(t, filepath.Join(pool, "v1"), filepath.Join(pool, "v2"), filepath.Join(pool, "v3"))

	n := 0
	for range NewWalker(nil, nil).Walk(context.Background(), sciaFamily(t, pool)) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestWalk_StopsWhenCancelled(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	mkdirs(t, filepath.Join(pool, "v1"), filepath.Join(pool, "v2"), filepath.Join(pool, "v3"))

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	for range NewWalker(nil, nil).Walk(ctx, sciaFamily(t, pool)) {
		n++
		cancel()
	}
	assert.Equal(t, 1, n)
}

func TestWalk_IsRepeatableByReinvocation(t *testing.T) {
	root := t.TempDir()
	pool := filepath.Join(root, "LV1_01")
	touch(t, filepath.Join(pool, "v8", "A.N1"))

	w := NewWalker(nil, nil)
	d := sciaFamily(t, pool)
	first := collect(t, w, d)
	second := collect(t, w, d)
	assert.Equal(t, first, second)
}
