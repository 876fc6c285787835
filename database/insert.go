package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

// builds INSERT INTO table (a, b) VALUES (p1, p2) with the driver's placeholder style
func buildInsertSQL(table string, columns []string, placeholder func(i int) string) string {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sanitizeIdentifier(c)
		marks[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sanitizeIdentifier(table),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
	)
}

// insertRowsTx runs query once per row inside a single transaction.
// Any failure rolls the whole transaction back.
func insertRowsTx(ctx context.Context, db *sql.DB, query string, width int, rows []schema.Row) (int64, error) {
	if db == nil {
		return 0, ErrNotConnected
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction, %w", err)
	}
	defer tx.Rollback() // no-op once committed

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement, %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d values, expected %d", i, len(row), width)
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert row %d, %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction, %w", err)
	}
	return inserted, nil
}

func countRows(ctx context.Context, db *sql.DB, table string) (int64, error) {
	if db == nil {
		return 0, ErrNotConnected
	}
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", sanitizeIdentifier(table))
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s, %w", table, err)
	}
	return n, nil
}

// this helps in preventing SQL injection by sanitizing identifiers
func sanitizeIdentifier(identifier string) string {
	return strings.NewReplacer("'", "", "\"", "", "`", "", ";", "", " ", "").Replace(identifier)
}
