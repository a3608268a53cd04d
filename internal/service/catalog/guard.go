package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"nadc-check/internal/domain"
)

// GuardConfig holds the limits applied to every catalog query.
type GuardConfig struct {
	// Timeout bounds a single query. Zero disables the timeout.
	Timeout time.Duration
	// RequestsPerSecond is the sustained query rate. Zero or less disables
	// rate limiting.
	RequestsPerSecond float64
	// Burst is the maximum number of queries allowed in a burst.
	Burst int
}

// Guarded wraps a querier with a per-query timeout and a shared token-bucket
// rate limit. A query that times out or is cancelled while waiting for a
// token fails with a *domain.QueryFailure.
type Guarded struct {
	next    domain.CatalogQuerier
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGuarded creates a Guarded querier.
func NewGuarded(next domain.CatalogQuerier, cfg GuardConfig) *Guarded {
	g := &Guarded{next: next, timeout: cfg.Timeout}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Query implements domain.CatalogQuerier.
func (g *Guarded) Query(ctx context.Context, catalog string, q domain.CatalogQuery) ([]string, error) {
	var records []string
	err := g.guard(ctx, catalog, q, func(ctx context.Context) error {
		var err error
		records, err = g.next.Query(ctx, catalog, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Dump implements domain.CatalogDumper under the same limits as Query. It
// fails when the wrapped querier cannot dump records.
func (g *Guarded) Dump(ctx context.Context, catalog string, q domain.CatalogQuery) ([]domain.CatalogRow, error) {
	dumper, ok := g.next.(domain.CatalogDumper)
	if !ok {
		return nil, domain.ErrQuery(catalog, q, errors.New("catalog does not support record dumps"))
	}
	var rows []domain.CatalogRow
	err := g.guard(ctx, catalog, q, func(ctx context.Context) error {
		var err error
		rows, err = dumper.Dump(ctx, catalog, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// guard waits for a rate token and runs fn under the query timeout.
func (g *Guarded) guard(ctx context.Context, catalog string, q domain.CatalogQuery, fn func(context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return domain.ErrQuery(catalog, q, fmt.Errorf("wait for rate limit: %w", err))
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := fn(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.ErrQuery(catalog, q, fmt.Errorf("timed out after %s: %w", g.timeout, context.DeadlineExceeded))
		}
		return asQueryFailure(catalog, q, err)
	}
	return nil
}

var (
	_ domain.CatalogQuerier = (*Guarded)(nil)
	_ domain.CatalogDumper  = (*Guarded)(nil)
)
