package reconcile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nadc-check/internal/archive"
	"nadc-check/internal/domain"
	"nadc-check/internal/family"
	"nadc-check/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// reversedFS lists directories in reverse name order.
type reversedFS struct{ archive.OSFS }

func (reversedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(name)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, err
}

// deniedFS fails ReadDir for one directory.
type deniedFS struct {
	archive.OSFS
	path string
}

func (f deniedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name == f.path {
		return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.EACCES}
	}
	return os.ReadDir(name)
}

type fixture struct {
	families []domain.FamilyDescriptor
	catalog  *testutil.MemoryCatalog
	sciaPool string
	caiPool  string
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

// newFixture builds a small archive with one identity family and one count
// family, and a catalog in which v8/B.N1 is missing and the 2024/03/06 CAI
// leaf is one record short.
func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	sciaPool := filepath.Join(root, "SCIA", "LV1_01")
	caiPool := filepath.Join(root, "gosat", "LV2_01")

	touch(t,
		filepath.Join(sciaPool, "v7", "A.N1.gz"),
		filepath.Join(sciaPool, "v8", "A.N1"),
		filepath.Join(sciaPool, "v8", "B.N1"),
		filepath.Join(sciaPool, "v8", "README"),
		filepath.Join(caiPool, "CAI_L2", "2024", "03", "05", "c1.h5"),
		filepath.Join(caiPool, "CAI_L2", "2024", "03", "05", "c2.h5"),
		filepath.Join(caiPool, "CAI_L2", "2024", "03", "06", "c3.h5"),
		filepath.Join(caiPool, "CAI_L2", "2024", "03", "06", "c4.h5"),
	)
	require.NoError(t, os.MkdirAll(filepath.Join(caiPool, "CAI_L2", "2024", "03", "07"), 0o755))

	scia, err := family.New(family.Spec{
		Name: "scia-l0l1", Preset: family.PresetSciaVersioned, Catalog: "scia", PoolRoots: []string{sciaPool},
	})
	require.NoError(t, err)
	cai, err := family.New(family.Spec{
		Name: "gosat-cai-l2", Preset: family.PresetGosatCAI, Catalog: "gosat", PoolRoots: []string{caiPool},
	})
	require.NoError(t, err)

	catalog := &testutil.MemoryCatalog{
		Records: map[string][]string{"scia": {
			filepath.Join(sciaPool, "v7", "A.N1.gz"),
			filepath.Join(sciaPool, "v8", "A.N1"),
		}},
		Filtered: map[string]map[string][]string{"gosat": {
			"type=tcai_2 date=20240305": {"/r/c1.h5", "/r/c2.h5"},
			"type=tcai_2 date=20240306": {"/r/c3.h5"},
		}},
	}
	return fixture{families: []domain.FamilyDescriptor{scia, cai}, catalog: catalog, sciaPool: sciaPool, caiPool: caiPool}
}

func newRunner(fsys archive.FS, catalog domain.CatalogQuerier, workers int) *Runner {
	return NewRunner(RunnerDeps{
		Walker:     archive.NewWalker(fsys, nil),
		Reconciler: NewReconciler(catalog, nil),
		Workers:    workers,
	})
}

// stable compares reports without run identity or timing.
var stable = cmp.Options{
	cmpopts.IgnoreFields(domain.Report{}, "RunID", "StartedAt", "FinishedAt"),
	cmpopts.IgnoreFields(domain.LeafResult{}, "Err"),
}

func TestRun_ReportsDiscrepanciesAcrossFamilies(t *testing.T) {
	fx := newFixture(t)

	report, err := newRunner(nil, fx.catalog, 2).Run(context.Background(), fx.families...)
	require.NoError(t, err)

	assert.Equal(t, []string{"scia-l0l1", "gosat-cai-l2"}, report.Families)
	assert.False(t, report.Interrupted)
	assert.True(t, report.HasDiscrepancies())
	assert.False(t, report.HasUnverified())
	assert.Equal(t, domain.Summary{Leaves: 5, Consistent: 3, Inconsistent: 2, Discrepancies: 2}, report.Summary())

	discs := report.Discrepancies()
	require.Len(t, discs, 2)
	assert.Equal(t, domain.DiscrepancyCountMismatch, discs[0].Kind)
	assert.Equal(t, filepath.Join(fx.caiPool, "CAI_L2", "2024", "03", "06"), discs[0].LeafPath)
	assert.Equal(t, domain.DiscrepancyMissing, discs[1].Kind)
	assert.Equal(t, filepath.Join(fx.sciaPool, "v8", "B.N1"), discs[1].Path)
}

func TestRun_Idempotent(t *testing.T) {
	fx := newFixture(t)
	runner := newRunner(nil, fx.catalog, 4)

	first, err := runner.Run(context.Background(), fx.families...)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), fx.families...)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, stable); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_OrderIndependent(t *testing.T) {
	fx := newFixture(t)

	sequential, err := newRunner(nil, fx.catalog, 1).Run(context.Background(), fx.families...)
	require.NoError(t, err)
	parallel, err := newRunner(reversedFS{}, fx.catalog, 8).Run(context.Background(), fx.families...)
	require.NoError(t, err)
	swapped, err := newRunner(nil, fx.catalog, 3).Run(context.Background(), fx.families[1], fx.families[0])
	require.NoError(t, err)

	if diff := cmp.Diff(sequential, parallel, stable); diff != "" {
		t.Errorf("listing order changed the report (-sequential +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(sequential.Leaves, swapped.Leaves, stable); diff != "" {
		t.Errorf("family order changed the leaves (-sequential +swapped):\n%s", diff)
	}
}

func TestRun_UnreadableLeafDoesNotStopSiblings(t *testing.T) {
	fx := newFixture(t)
	denied := filepath.Join(fx.sciaPool, "v8")

	report, err := newRunner(deniedFS{path: denied}, fx.catalog, 2).Run(context.Background(), fx.families...)
	require.NoError(t, err)

	assert.True(t, report.HasUnverified())
	s := report.Summary()
	assert.Equal(t, 5, s.Leaves)
	assert.Equal(t, 1, s.Unverified)

	var got domain.LeafResult
	for _, l := range report.Leaves {
		if l.Path == denied {
			got = l
		}
	}
	assert.Equal(t, domain.LeafUnverified, got.Status)
	var fsErr *domain.FilesystemError
	require.True(t, errors.As(got.Err, &fsErr))
	assert.ErrorIs(t, got.Err, syscall.EACCES)
}

func TestRun_AbsentPoolsYieldEmptyReport(t *testing.T) {
	// Scenario F at the run level.
	d, err := family.New(family.Spec{
		Name: "gosat-fts-l1", Preset: family.PresetGosatFTS, Catalog: "gosat",
		PoolRoots: []string{filepath.Join(t.TempDir(), "missing")},
	})
	require.NoError(t, err)

	report, err := newRunner(nil, &testutil.MockCatalogQuerier{}, 2).Run(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, report.Leaves)
	assert.False(t, report.HasDiscrepancies())
	assert.False(t, report.HasUnverified())
}

func TestRun_CancelledReturnsPartialReport(t *testing.T) {
	fx := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	var once bool
	mock := &testutil.MockCatalogQuerier{
		QueryFn: func(qctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error) {
			if !once {
				once = true
				cancel()
			}
			return fx.catalog.Query(qctx, catalog, q)
		},
	}

	report, err := newRunner(nil, mock, 1).Run(ctx, fx.families...)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Less(t, len(report.Leaves), 5)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRun_UsesClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	runner := NewRunner(RunnerDeps{
		Reconciler: NewReconciler(&testutil.MockCatalogQuerier{}, nil),
		Now: func() time.Time {
			calls++
			return start.Add(time.Duration(calls-1) * time.Minute)
		},
	})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, start.Add(time.Minute), report.FinishedAt)
	assert.Empty(t, report.Families)
}
