// Package reconcile compares archive leaves against the product catalog.
package reconcile

import (
	"context"
	"fmt"

	"nadc-check/internal/domain"
	"nadc-check/internal/family"
)

// Check is what a policy found at one leaf.
type Check struct {
	// Records counts the catalog records that back the leaf: files found
	// under the identity policy, distinct filter results under the count policy.
	Records       int
	Discrepancies []domain.Discrepancy
}

// Policy decides whether a leaf agrees with the catalog.
//
// When Check returns an error the leaf could not be verified. The returned
// Check still carries any discrepancy established before the failure.
type Policy interface {
	Kind() domain.PolicyKind
	Check(ctx context.Context, catalog domain.CatalogQuerier, d domain.FamilyDescriptor, leaf domain.LeafLocation) (Check, error)
}

// PolicyFor returns the policy implementing kind.
func PolicyFor(kind domain.PolicyKind) (Policy, error) {
	switch kind {
	case domain.PolicyIdentity:
		return IdentityPolicy{}, nil
	case domain.PolicyCount:
		return CountPolicy{}, nil
	default:
		return nil, domain.ErrConfig("unknown comparison policy %q", kind)
	}
}

// IdentityPolicy issues one exact-name query per discovered file and reports
// every file whose full path is not among the returned records.
type IdentityPolicy struct{}

// Kind implements Policy.
func (IdentityPolicy) Kind() domain.PolicyKind { return domain.PolicyIdentity }

// Check implements Policy. Files are checked in listing order; the first
// failure stops the leaf and leaves the remaining files unchecked.
func (IdentityPolicy) Check(ctx context.Context, catalog domain.CatalogQuerier, d domain.FamilyDescriptor, leaf domain.LeafLocation) (Check, error) {
	var out Check
	for _, f := range leaf.Files {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		q, err := family.DeriveKey(d, leaf, f.Name)
		if err != nil {
			return out, err
		}
		records, err := catalog.Query(ctx, d.Catalog, q)
		if err != nil {
			return out, err
		}

		if contains(records, f.Path) {
			out.Records++
			continue
		}
		out.Discrepancies = append(out.Discrepancies, domain.Discrepancy{
			Family:   d.Name,
			LeafPath: leaf.Path,
			Kind:     domain.DiscrepancyMissing,
			Path:     f.Path,
			Expected: 1,
			Actual:   0,
			Detail:   missingDetail(d.Catalog, q, records),
		})
	}
	return out, nil
}

func missingDetail(catalog string, q domain.CatalogQuery, records []string) string {
	if len(records) == 0 {
		return fmt.Sprintf("%s not registered in catalog %s", q.Name, catalog)
	}
	return fmt.Sprintf("%s registered in catalog %s at %s", q.Name, catalog, records[0])
}

// CountPolicy issues one filter query per leaf and only compares the number
// of discovered files with the number of distinct records. It does not check
// that the same products are registered.
type CountPolicy struct{}

// Kind implements Policy.
func (CountPolicy) Kind() domain.PolicyKind { return domain.PolicyCount }

// Check implements Policy.
func (CountPolicy) Check(ctx context.Context, catalog domain.CatalogQuerier, d domain.FamilyDescriptor, leaf domain.LeafLocation) (Check, error) {
	q, err := family.LeafQuery(d, leaf)
	if err != nil {
		return Check{}, err
	}
	records, err := catalog.Query(ctx, d.Catalog, q)
	if err != nil {
		return Check{}, err
	}

	found := distinct(records)
	out := Check{Records: found}
	if len(leaf.Files) != found {
		out.Discrepancies = append(out.Discrepancies, domain.Discrepancy{
			Family:   d.Name,
			LeafPath: leaf.Path,
			Kind:     domain.DiscrepancyCountMismatch,
			Expected: len(leaf.Files),
			Actual:   found,
			Detail: fmt.Sprintf("%d files on disk, %d records in catalog %s for %s",
				len(leaf.Files), found, d.Catalog, q),
		})
	}
	return out, nil
}

func contains(records []string, path string) bool {
	for _, r := range records {
		if r == path {
			return true
		}
	}
	return false
}

func distinct(records []string) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r] = struct{}{}
	}
	return len(seen)
}
