package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nadc-check/internal/domain"
)

// Receive windows accepted by ReceiveModifier.
const (
	maxReceiveHours = 23
	maxReceiveDays  = 7
)

// ReceiveModifier turns a receive window of the form Nh (1 to 23 hours) or Nd
// (1 to 7 days) into the SQLite datetime modifier selecting its start.
func ReceiveModifier(window string) (string, error) {
	if len(window) < 2 {
		return "", fmt.Errorf("receive window %q: expected Nh or Nd", window)
	}
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil {
		return "", fmt.Errorf("receive window %q: expected Nh or Nd", window)
	}
	switch window[len(window)-1] {
	case 'h':
		if n < 1 || n > maxReceiveHours {
			return "", fmt.Errorf("receive window %q: hours must be 1 to %d", window, maxReceiveHours)
		}
		return fmt.Sprintf("-%d hours", n), nil
	case 'd':
		if n < 1 || n > maxReceiveDays {
			return "", fmt.Errorf("receive window %q: days must be 1 to %d", window, maxReceiveDays)
		}
		return fmt.Sprintf("-%d days", n), nil
	default:
		return "", fmt.Errorf("receive window %q: expected Nh or Nd", window)
	}
}

// timeConditions adds the dateTimeStart and receiveDate selections of f.
// Column names are prefixed with p.
func timeConditions(f domain.CatalogFilter, p string, conds []string, args []any) ([]string, []any, error) {
	if f.Date != "" {
		start, end, err := DateWindow(f.Date)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, p+`dateTimeStart >= ? AND `+p+`dateTimeStart < ?`)
		args = append(args, start, end)
	}
	if f.Received != "" {
		mod, err := ReceiveModifier(f.Received)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, p+`receiveDate BETWEEN datetime('now', ?) AND datetime('now')`)
		args = append(args, mod)
	}
	return conds, args, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return ` WHERE ` + strings.Join(conds, ` AND `)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// dumpRows runs stmt and returns every row with its column names.
func dumpRows(ctx context.Context, db *sql.DB, stmt string, args ...any) ([]domain.CatalogRow, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []domain.CatalogRow
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			switch v := v.(type) {
			case []byte:
				values[i] = string(v)
			case time.Time:
				values[i] = v.UTC().Format(sqliteTimeLayout)
			}
		}
		out = append(out, domain.CatalogRow{Columns: cols, Values: values})
	}
	return out, rows.Err()
}
