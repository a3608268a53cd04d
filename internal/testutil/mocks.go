// Package testutil provides shared fakes of domain interfaces for use in
// tests across the codebase. This follows the Go convention of a shared test
// utility package (like net/http/httptest).
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"nadc-check/internal/domain"
)

// === Catalog Querier Mock ===

// CatalogCall records one call to MockCatalogQuerier.Query.
type CatalogCall struct {
	Catalog string
	Query   domain.CatalogQuery
}

// MockCatalogQuerier implements domain.CatalogQuerier for testing.
// It is safe for concurrent use.
type MockCatalogQuerier struct {
	QueryFn func(ctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error)

	mu    sync.Mutex
	calls []CatalogCall
}

// Query implements the interface method for testing.
func (m *MockCatalogQuerier) Query(ctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, CatalogCall{Catalog: catalog, Query: q})
	m.mu.Unlock()

	if m.QueryFn != nil {
		return m.QueryFn(ctx, catalog, q)
	}
	panic("unexpected call to MockCatalogQuerier.Query")
}

// Calls returns a copy of the recorded calls.
func (m *MockCatalogQuerier) Calls() []CatalogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CatalogCall(nil), m.calls...)
}

// === In-memory catalog ===

// MemoryCatalog is a domain.CatalogQuerier backed by maps.
//
// Name lookups match the records of the catalog whose base name, without a
// compression suffix, equals the queried name. Filter lookups are answered
// from Filtered, keyed by CatalogQuery.String(). Failures, keyed the same
// way, take precedence over both.
type MemoryCatalog struct {
	Records  map[string][]string            // catalog name -> full record paths
	Filtered map[string]map[string][]string // catalog name -> query -> records
	Failures map[string]error               // query string -> cause
}

// Query implements domain.CatalogQuerier.
func (c *MemoryCatalog) Query(ctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrQuery(catalog, q, err)
	}
	if err, ok := c.Failures[q.String()]; ok {
		return nil, domain.ErrQuery(catalog, q, err)
	}

	records, ok := c.Records[catalog]
	filtered, fok := c.Filtered[catalog]
	if !ok && !fok {
		return nil, domain.ErrQuery(catalog, q, errors.New("catalog is not configured"))
	}

	if q.IsFilter() {
		return append([]string{}, filtered[q.String()]...), nil
	}
	out := []string{}
	for _, r := range records {
		if strings.TrimSuffix(filepath.Base(r), domain.CompressionSuffix) == q.Name {
			out = append(out, r)
		}
	}
	return out, nil
}
