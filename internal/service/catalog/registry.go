// Package catalog routes reconciliation queries to the configured catalogs.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	internaldb "nadc-check/internal/db"
	"nadc-check/internal/db/repository"
	"nadc-check/internal/domain"
)

// Store answers queries against a single catalog database.
type Store interface {
	Lookup(ctx context.Context, q domain.CatalogQuery) ([]string, error)
}

// DumpStore is a Store that can also return complete records.
type DumpStore interface {
	Store
	Dump(ctx context.Context, q domain.CatalogQuery) ([]domain.CatalogRow, error)
}

// Source describes one catalog to open.
type Source struct {
	Name string
	Kind string // internaldb.KindScia or internaldb.KindGosat
	Path string
}

// OpenOptions configures how catalog pools are opened.
type OpenOptions struct {
	// Host selects local or NFS roots in GOSAT catalogs.
	Host string
	// MaxOpen bounds each read pool. Zero uses the pool default.
	MaxOpen int
}

// Registry maps catalog names to stores and implements domain.CatalogQuerier.
// It is populated before a run and read-only afterwards.
type Registry struct {
	stores map[string]Store
	dbs    []*sql.DB
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{stores: make(map[string]Store), logger: logger}
}

// Open opens a read-only pool per source and registers a store for it.
// On failure every pool opened so far is closed.
func Open(sources []Source, opts OpenOptions, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, src := range sources {
		if err := r.open(src, opts); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) open(src Source, opts OpenOptions) error {
	if _, dup := r.stores[src.Name]; dup {
		return domain.ErrConfig("catalog %q is configured twice", src.Name)
	}

	var newStore func(db *sql.DB) Store
	switch src.Kind {
	case internaldb.KindScia:
		newStore = func(db *sql.DB) Store { return repository.NewSciaStore(db, r.logger) }
	case internaldb.KindGosat:
		newStore = func(db *sql.DB) Store { return repository.NewGosatStore(db, opts.Host, r.logger) }
	default:
		return domain.ErrConfig("catalog %q: unknown kind %q", src.Name, src.Kind)
	}

	db, err := internaldb.OpenSQLite(src.Path, internaldb.ModeRead, opts.MaxOpen)
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", src.Name, err)
	}
	r.dbs = append(r.dbs, db)
	r.Register(src.Name, newStore(db))
	r.logger.Debug("catalog opened", "catalog", src.Name, "kind", src.Kind, "path", src.Path)
	return nil
}

// Register adds or replaces the store for a catalog name.
func (r *Registry) Register(name string, store Store) {
	r.stores[name] = store
}

// Names returns the registered catalog names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Require fails with a ConfigError if any of the names is not registered.
func (r *Registry) Require(names ...string) error {
	for _, name := range names {
		if _, ok := r.stores[name]; !ok {
			return domain.ErrConfig("catalog %q is not configured", name)
		}
	}
	return nil
}

// Query implements domain.CatalogQuerier. Every failure, including an
// unknown catalog name, is returned as a *domain.QueryFailure.
func (r *Registry) Query(ctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error) {
	store, ok := r.stores[catalog]
	if !ok {
		return nil, domain.ErrQuery(catalog, q, errors.New("catalog is not configured"))
	}
	records, err := store.Lookup(ctx, q)
	if err != nil {
		return nil, asQueryFailure(catalog, q, err)
	}
	if records == nil {
		records = []string{}
	}
	return records, nil
}

// Dump implements domain.CatalogDumper for stores that support it.
func (r *Registry) Dump(ctx context.Context, catalog string, q domain.CatalogQuery) ([]domain.CatalogRow, error) {
	store, ok := r.stores[catalog]
	if !ok {
		return nil, domain.ErrQuery(catalog, q, errors.New("catalog is not configured"))
	}
	ds, ok := store.(DumpStore)
	if !ok {
		return nil, domain.ErrQuery(catalog, q, errors.New("catalog does not support record dumps"))
	}
	rows, err := ds.Dump(ctx, q)
	if err != nil {
		return nil, asQueryFailure(catalog, q, err)
	}
	if rows == nil {
		rows = []domain.CatalogRow{}
	}
	return rows, nil
}

// Close closes every pool opened by Open.
func (r *Registry) Close() error {
	var errs []error
	for _, db := range r.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.dbs = nil
	return errors.Join(errs...)
}

func asQueryFailure(catalog string, q domain.CatalogQuery, err error) error {
	var qf *domain.QueryFailure
	if errors.As(err, &qf) {
		return err
	}
	return domain.ErrQuery(catalog, q, err)
}

var (
	_ domain.CatalogQuerier = (*Registry)(nil)
	_ domain.CatalogDumper  = (*Registry)(nil)
	_ DumpStore             = (*repository.SciaStore)(nil)
	_ DumpStore             = (*repository.GosatStore)(nil)
)
