package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CatalogFilter is a coarse, date-level selection of catalog records.
//
// Reconciliation only sets Type, Date, ObsMode and ProdVersion. The other
// selections serve interactive lookups.
type CatalogFilter struct {
	Type        string // product type tag, e.g. "tfts_1", "tcai_2", or a Sciamachy level
	Date        string // yyyy[mm[dd[hh[mm]]]]
	ObsMode     string // optional
	ProdVersion string // optional

	// Received keeps records whose receiveDate lies within the last Nh
	// hours or Nd days, e.g. "6h" or "2d".
	Received string
	// Orbits holds one absolute orbit or a first,last range. Sciamachy only.
	Orbits []int
	// ProcStages restricts the processing stage. Sciamachy only.
	ProcStages []string
	// Best keeps, per orbit, the records with the highest processing stage
	// (the highest q_flag for level 0). Sciamachy only.
	Best bool
}

// CatalogQuery is either an exact product-name lookup or a filter lookup.
type CatalogQuery struct {
	Name   string
	Level  string
	Filter *CatalogFilter
}

// IsFilter reports whether q is a filter lookup.
func (q CatalogQuery) IsFilter() bool { return q.Filter != nil }

// String renders the query for logs and error messages.
func (q CatalogQuery) String() string {
	if q.Filter == nil {
		if q.Level != "" {
			return fmt.Sprintf("name=%s level=%s", q.Name, q.Level)
		}
		return "name=" + q.Name
	}
	parts := []string{"type=" + q.Filter.Type}
	if q.Filter.Date != "" {
		parts = append(parts, "date="+q.Filter.Date)
	}
	if q.Filter.ObsMode != "" {
		parts = append(parts, "obs_mode="+q.Filter.ObsMode)
	}
	if q.Filter.ProdVersion != "" {
		parts = append(parts, "prod_version="+q.Filter.ProdVersion)
	}
	if q.Filter.Received != "" {
		parts = append(parts, "received="+q.Filter.Received)
	}
	if len(q.Filter.Orbits) > 0 {
		orbits := make([]string, len(q.Filter.Orbits))
		for i, o := range q.Filter.Orbits {
			orbits[i] = strconv.Itoa(o)
		}
		parts = append(parts, "orbit="+strings.Join(orbits, "-"))
	}
	if len(q.Filter.ProcStages) > 0 {
		parts = append(parts, "proc="+strings.Join(q.Filter.ProcStages, ","))
	}
	if q.Filter.Best {
		parts = append(parts, "best")
	}
	return strings.Join(parts, " ")
}

// CatalogRow is one catalog record with all of its columns, in table order.
type CatalogRow struct {
	Columns []string
	Values  []any
}

// MarshalJSON renders the row as a JSON object in column order.
func (r CatalogRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CatalogQuerier is the read-only boundary to the external product catalog.
//
// Query returns the full paths of the matching records. An empty result means
// nothing is registered; a failure to answer must be returned as an error
// (a *QueryFailure), never as an empty result.
type CatalogQuerier interface {
	Query(ctx context.Context, catalog string, q CatalogQuery) ([]string, error)
}

// CatalogDumper returns complete catalog records rather than product paths.
// Failures follow the CatalogQuerier contract.
type CatalogDumper interface {
	Dump(ctx context.Context, catalog string, q CatalogQuery) ([]CatalogRow, error)
}
