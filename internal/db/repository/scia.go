// Package repository implements the read-only catalog stores on SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"nadc-check/internal/domain"
)

// SciaStore answers queries against a Sciamachy catalog (meta__0P, meta__1P
// and meta__2P).
type SciaStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSciaStore creates a SciaStore on an open read pool.
func NewSciaStore(db *sql.DB, logger *slog.Logger) *SciaStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SciaStore{db: db, logger: logger}
}

// SciaProcStages lists the processing stage codes a lookup may select.
const SciaProcStages = "BNOPRSUWY"

// sciaPathColumns are the columns a path lookup reads.
var sciaPathColumns = []string{"path", "name", "compression"}

// Lookup returns the full paths of the products matching q. A name lookup
// uses the level hint, or the level encoded in the product name. A filter
// lookup selects one product level (Filter.Type "0", "1" or "2") and
// narrows it by date, receive time, orbit and processing stage.
func (s *SciaStore) Lookup(ctx context.Context, q domain.CatalogQuery) ([]string, error) {
	stmt, args, err := sciaStatement(q, sciaPathColumns)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, stmt, args...)
}

// Dump returns every column of the products matching q.
func (s *SciaStore) Dump(ctx context.Context, q domain.CatalogQuery) ([]domain.CatalogRow, error) {
	stmt, args, err := sciaStatement(q, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("catalog query", "sql", stmt, "args", args)
	return dumpRows(ctx, s.db, stmt, args...)
}

// sciaStatement builds the select for q. Nil cols selects every column.
func sciaStatement(q domain.CatalogQuery, cols []string) (string, []any, error) {
	if q.IsFilter() {
		return sciaTypeStatement(*q.Filter, cols)
	}
	if q.Name == "" {
		return "", nil, fmt.Errorf("product name is required")
	}
	level := q.Level
	if level == "" {
		level = sciaLevelFromName(q.Name)
	}
	table, err := sciaTable(level)
	if err != nil {
		return "", nil, err
	}
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE name = ?`, columnList(cols, ""), table)
	return stmt, []any{q.Name}, nil
}

func sciaTypeStatement(f domain.CatalogFilter, cols []string) (string, []any, error) {
	table, err := sciaTable(f.Type)
	if err != nil {
		return "", nil, err
	}
	if f.ObsMode != "" || f.ProdVersion != "" {
		return "", nil, fmt.Errorf("observation mode and product version do not apply to %s", table)
	}

	if !f.Best {
		conds, args, err := sciaConditions(f, "")
		if err != nil {
			return "", nil, err
		}
		stmt := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY absOrbit ASC, procStage DESC`,
			columnList(cols, ""), table, whereClause(conds))
		return stmt, args, nil
	}

	// Rank each orbit inside the selection, then join the winners back.
	rank := "procStage"
	if f.Type == "0" {
		rank = "q_flag"
	}
	inner, innerArgs, err := sciaConditions(f, "")
	if err != nil {
		return "", nil, err
	}
	outer, outerArgs, _ := sciaConditions(f, "s1.")
	join := append([]string{`s1.absOrbit = s2.absOrbit`, `s1.` + rank + ` = s2.best`}, outer...)

	stmt := fmt.Sprintf(`SELECT %s FROM %s AS s1 JOIN (SELECT absOrbit, MAX(%s) AS best FROM %s%s GROUP BY absOrbit) AS s2 ON %s ORDER BY s1.absOrbit ASC, s1.name ASC`,
		columnList(cols, "s1."), table, rank, table, whereClause(inner), strings.Join(join, ` AND `))
	return stmt, append(innerArgs, outerArgs...), nil
}

// sciaConditions builds the WHERE terms of f with columns prefixed by p.
func sciaConditions(f domain.CatalogFilter, p string) ([]string, []any, error) {
	var conds []string
	var args []any

	switch len(f.Orbits) {
	case 0:
	case 1:
		conds = append(conds, p+`absOrbit = ?`)
		args = append(args, f.Orbits[0])
	case 2:
		first, last := f.Orbits[0], f.Orbits[1]
		if first > last {
			first, last = last, first
		}
		conds = append(conds, p+`absOrbit BETWEEN ? AND ?`)
		args = append(args, first, last)
	default:
		return nil, nil, fmt.Errorf("orbit selection takes one orbit or a first,last range, got %d values", len(f.Orbits))
	}

	if len(f.ProcStages) > 0 {
		for _, stage := range f.ProcStages {
			if len(stage) != 1 || !strings.Contains(SciaProcStages, stage) {
				return nil, nil, fmt.Errorf("unknown processing stage %q: use one of %s", stage, SciaProcStages)
			}
			args = append(args, stage)
		}
		conds = append(conds, p+`procStage IN (`+placeholders(len(f.ProcStages))+`)`)
	}

	return timeConditions(f, p, conds, args)
}

// columnList renders cols prefixed with p, or every column when cols is nil.
func columnList(cols []string, p string) string {
	if cols == nil {
		return p + "*"
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = p + c
	}
	return strings.Join(out, ", ")
}

func (s *SciaStore) query(ctx context.Context, stmt string, args ...any) ([]string, error) {
	s.logger.Debug("catalog query", "sql", stmt, "args", args)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dir, name string
		var compressed bool
		if err := rows.Scan(&dir, &name, &compressed); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, name)
		if compressed {
			full += domain.CompressionSuffix
		}
		out = append(out, full)
	}
	return out, rows.Err()
}

// sciaLevelFromName reads the product level from a Sciamachy product name:
// SCI_NL__0P is level 0, SCI_NL__1P level 1, anything else level 2.
func sciaLevelFromName(name string) string {
	switch {
	case strings.HasPrefix(name, "SCI_NL__0P"):
		return "0"
	case strings.HasPrefix(name, "SCI_NL__1P"):
		return "1"
	default:
		return "2"
	}
}

func sciaTable(level string) (string, error) {
	switch level {
	case "0", "1", "2":
		return "meta__" + level + "P", nil
	default:
		return "", fmt.Errorf("unknown Sciamachy product level %q", level)
	}
}
