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

// GOSAT product type tags.
const (
	GosatTypeFTS = "tfts_1"
	GosatTypeCAI = "tcai_2"
)

// GosatStore answers queries against a GOSAT catalog (tfts__1P and tcai__2P
// joined with rootPaths).
//
// Each product row points at a root path. The local path of that root is
// used when the root's hostName equals host, the NFS path otherwise.
type GosatStore struct {
	db     *sql.DB
	host   string
	logger *slog.Logger
}

// NewGosatStore creates a GosatStore resolving roots for the given host.
func NewGosatStore(db *sql.DB, host string, logger *slog.Logger) *GosatStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GosatStore{db: db, host: host, logger: logger}
}

// Lookup returns the full paths of the products matching q.
//
// FTS records resolve to root/obsMode/prodVersion/yyyy/mm/dd/name, with the
// date taken from the product name. CAI records resolve to root/name.
func (s *GosatStore) Lookup(ctx context.Context, q domain.CatalogQuery) ([]string, error) {
	fts, stmt, args, err := s.statement(q, false)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, fts, stmt, args...)
}

// Dump returns every column of the products matching q, followed by the
// resolved root directory.
func (s *GosatStore) Dump(ctx context.Context, q domain.CatalogQuery) ([]domain.CatalogRow, error) {
	_, stmt, args, err := s.statement(q, true)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("catalog query", "sql", stmt, "args", args)
	return dumpRows(ctx, s.db, stmt, args...)
}

func (s *GosatStore) statement(q domain.CatalogQuery, dump bool) (fts bool, stmt string, args []any, err error) {
	if q.IsFilter() {
		return s.typeStatement(*q.Filter, dump)
	}
	if q.Name == "" {
		return false, "", nil, fmt.Errorf("product name is required")
	}
	fts = !strings.HasPrefix(q.Name, "GOSATTCAI")
	return fts, gosatSelect(fts, dump) + ` WHERE p.name = ?`, []any{s.host, q.Name}, nil
}

func (s *GosatStore) typeStatement(f domain.CatalogFilter, dump bool) (bool, string, []any, error) {
	var fts bool
	switch {
	case strings.EqualFold(f.Type, GosatTypeFTS):
		fts = true
	case strings.EqualFold(f.Type, GosatTypeCAI):
		if f.ObsMode != "" || f.ProdVersion != "" {
			return false, "", nil, fmt.Errorf("observation mode and product version only apply to %s", GosatTypeFTS)
		}
	default:
		return false, "", nil, fmt.Errorf("unknown GOSAT product type %q", f.Type)
	}
	if len(f.Orbits) > 0 || len(f.ProcStages) > 0 || f.Best {
		return false, "", nil, fmt.Errorf("orbit, processing stage and best selections only apply to Sciamachy catalogs")
	}

	conds, args, err := timeConditions(f, "p.", nil, []any{s.host})
	if err != nil {
		return false, "", nil, err
	}
	if f.ObsMode != "" {
		conds = append(conds, `p.observationMode = ?`)
		args = append(args, f.ObsMode)
	}
	if f.ProdVersion != "" {
		conds = append(conds, `p.productVersion = ?`)
		args = append(args, f.ProdVersion)
	}

	stmt := gosatSelect(fts, dump) + whereClause(conds) + ` ORDER BY p.name`
	return fts, stmt, args, nil
}

// gosatSelect builds the product select. The first placeholder is the host
// used to choose between local and NFS roots. A dump selects every product
// column and the root as rootPath.
func gosatSelect(fts, dump bool) string {
	root := `CASE WHEN r.hostName = ? THEN r.localPath ELSE r.nfsPath END`
	table := "tcai__2P"
	if fts {
		table = "tfts__1P"
	}
	from := ` FROM ` + table + ` AS p LEFT JOIN rootPaths AS r ON r.pathID = p.pathID`
	switch {
	case dump:
		return `SELECT p.*, ` + root + ` AS rootPath` + from
	case fts:
		return `SELECT ` + root + `, p.observationMode, p.productVersion, p.name` + from
	default:
		return `SELECT ` + root + `, '', '', p.name` + from
	}
}

func (s *GosatStore) query(ctx context.Context, fts bool, stmt string, args ...any) ([]string, error) {
	s.logger.Debug("catalog query", "sql", stmt, "args", args)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var root sql.NullString
		var obsMode, prodVersion, name string
		if err := rows.Scan(&root, &obsMode, &prodVersion, &name); err != nil {
			return nil, err
		}
		if !root.Valid {
			return nil, fmt.Errorf("product %s has no root path", name)
		}
		if fts {
			out = append(out, filepath.Join(root.String, obsMode, prodVersion, ftsDateDir(name), name))
		} else {
			out = append(out, filepath.Join(root.String, name))
		}
	}
	return out, rows.Err()
}

// ftsDateDir returns the yyyy/mm/dd directory encoded at offset 9 of an FTS
// product name, e.g. GOSATTFTS2024030512... gives 2024/03/05.
func ftsDateDir(name string) string {
	if len(name) < 17 {
		return ""
	}
	return filepath.Join(name[9:13], name[13:15], name[15:17])
}
