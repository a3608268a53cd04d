package reconcile

import (
	"context"
	"log/slog"

	"nadc-check/internal/domain"
)

// Reconciler checks single leaves against the catalog.
type Reconciler struct {
	catalog domain.CatalogQuerier
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(catalog domain.CatalogQuerier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{catalog: catalog, logger: logger}
}

// Reconcile applies the family's policy to one leaf. It never fails: errors
// are recorded in the result, which is then unverified.
func (r *Reconciler) Reconcile(ctx context.Context, d domain.FamilyDescriptor, leaf domain.LeafLocation) domain.LeafResult {
	res := domain.LeafResult{
		Family: d.Name,
		Path:   leaf.Path,
		Files:  len(leaf.Files),
	}

	policy, err := PolicyFor(d.Policy)
	if err != nil {
		return r.unverified(res, err)
	}

	check, err := policy.Check(ctx, r.catalog, d, leaf)
	res.Records = check.Records
	res.Discrepancies = check.Discrepancies
	if err != nil {
		return r.unverified(res, err)
	}

	if len(res.Discrepancies) > 0 {
		res.Status = domain.LeafInconsistent
		r.logger.Info("leaf inconsistent",
			"family", d.Name,
			"leaf", leaf.Path,
			"files", res.Files,
			"records", res.Records,
			"discrepancies", len(res.Discrepancies),
		)
		return res
	}

	res.Status = domain.LeafConsistent
	r.logger.Debug("leaf consistent", "family", d.Name, "leaf", leaf.Path, "files", res.Files, "records", res.Records)
	return res
}

// Unverified builds the result for a leaf that could not be checked at all,
// e.g. because its directory could not be read.
func Unverified(family, path string, err error) domain.LeafResult {
	return domain.LeafResult{
		Family: family,
		Path:   path,
		Status: domain.LeafUnverified,
		Err:    err,
		Error:  err.Error(),
	}
}

func (r *Reconciler) unverified(res domain.LeafResult, err error) domain.LeafResult {
	res.Status = domain.LeafUnverified
	res.Err = err
	res.Error = err.Error()
	r.logger.Warn("leaf unverified", "family", res.Family, "leaf", res.Path, "error", err)
	return res
}
