package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "nadc-check/internal/db"
	"nadc-check/internal/domain"
)

// storeFunc adapts a function to the Store interface.
type storeFunc func(ctx context.Context, q domain.CatalogQuery) ([]string, error)

func (f storeFunc) Lookup(ctx context.Context, q domain.CatalogQuery) ([]string, error) {
	return f(ctx, q)
}

func TestRegistry_Require(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("scia", storeFunc(func(context.Context, domain.CatalogQuery) ([]string, error) { return nil, nil }))

	require.NoError(t, r.Require("scia"))

	err := r.Require("scia", "gosat")
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Message, `"gosat"`)
}

func TestRegistry_QueryUnknownCatalog(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Query(context.Background(), "missing", domain.CatalogQuery{Name: "A.N1"})
	var qf *domain.QueryFailure
	require.True(t, errors.As(err, &qf))
	assert.Equal(t, "missing", qf.Catalog)
	assert.Equal(t, "name=A.N1", qf.Query)
}

func TestRegistry_QueryWrapsStoreErrors(t *testing.T) {
	cause := errors.New("disk I/O error")
	r := NewRegistry(nil)
	r.Register("scia", storeFunc(func(context.Context, domain.CatalogQuery) ([]string, error) { return nil, cause }))

	_, err := r.Query(context.Background(), "scia", domain.CatalogQuery{Name: "A.N1"})
	var qf *domain.QueryFailure
	require.True(t, errors.As(err, &qf))
	assert.ErrorIs(t, err, cause)
}

func TestRegistry_EmptyResultIsNotAFailure(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("scia", storeFunc(func(context.Context, domain.CatalogQuery) ([]string, error) { return nil, nil }))

	got, err := r.Query(context.Background(), "scia", domain.CatalogQuery{Name: "A.N1"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOpen_SQLiteCatalogs(t *testing.T) {
	sciaPath, sciaDB := internaldb.OpenTestCatalog(t, internaldb.KindScia)
	internaldb.InsertSciaProduct(t, sciaDB, "1", "SCI_NL__1PWDPA20040301.N1", "/SCIA/LV1_01/8.02", false, "2004-03-01 10:10:10")

	gosatPath, gosatDB := internaldb.OpenTestCatalog(t, internaldb.KindGosat)
	root := internaldb.InsertGosatRoot(t, gosatDB, "nadc01", "/data/LV2_01", "/nfs/LV2_01")
	internaldb.InsertGosatCAI(t, gosatDB, root, "GOSATTCAI2024030501.h5", "2024-03-05 01:00:00")

	r, err := Open([]Source{
		{Name: "scia", Kind: internaldb.KindScia, Path: sciaPath},
		{Name: "gosat", Kind: internaldb.KindGosat, Path: gosatPath},
	}, OpenOptions{Host: "nadc01"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, []string{"gosat", "scia"}, r.Names())

	got, err := r.Query(context.Background(), "scia", domain.CatalogQuery{Name: "SCI_NL__1PWDPA20040301.N1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/SCIA/LV1_01/8.02/SCI_NL__1PWDPA20040301.N1"}, got)

	got, err = r.Query(context.Background(), "gosat", domain.CatalogQuery{Filter: &domain.CatalogFilter{Type: "tcai_2", Date: "20240305"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/LV2_01/GOSATTCAI2024030501.h5"}, got)

	rows, err := r.Dump(context.Background(), "scia", domain.CatalogQuery{Name: "SCI_NL__1PWDPA20040301.N1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "name", rows[0].Columns[0])
	assert.Equal(t, "SCI_NL__1PWDPA20040301.N1", rows[0].Values[0])

	rows, err = r.Dump(context.Background(), "gosat", domain.CatalogQuery{Name: "GOSATTCAI2099010101.h5"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRegistry_DumpFailures(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("paths-only", storeFunc(func(context.Context, domain.CatalogQuery) ([]string, error) { return nil, nil }))

	tests := []struct {
		name    string
		catalog string
		msg     string
	}{
		{"unknown catalog", "missing", "catalog is not configured"},
		{"store without dumps", "paths-only", "does not support record dumps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Dump(context.Background(), tc.catalog, domain.CatalogQuery{Name: "A.N1"})
			var qf *domain.QueryFailure
			require.True(t, errors.As(err, &qf))
			assert.Equal(t, tc.catalog, qf.Catalog)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	sciaPath, _ := internaldb.OpenTestCatalog(t, internaldb.KindScia)

	tests := []struct {
		name    string
		sources []Source
		msg     string
	}{
		{"unknown kind", []Source{{Name: "x", Kind: "tropomi", Path: sciaPath}}, `unknown kind "tropomi"`},
		{"missing file", []Source{{Name: "x", Kind: internaldb.KindScia, Path: filepath.Join(t.TempDir(), "none.db")}}, "can not find SQLite database"},
		{"duplicate", []Source{
			{Name: "scia", Kind: internaldb.KindScia, Path: sciaPath},
			{Name: "scia", Kind: internaldb.KindScia, Path: sciaPath},
		}, "configured twice"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Open(tc.sources, OpenOptions{}, nil)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
