package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Row is a single result row keyed by column name
type Row map[string]interface{}

// ExecResult reports the outcome of a mutation
type ExecResult struct {
	InsertID     int64 `json:"insertId"`
	AffectedRows int64 `json:"affectedRows"`
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Query runs a parameterized query and returns every row as a column map.
// TEXT and BLOB values are both returned as strings.
func (db *DB) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		db.logger.Error("Query failed", zap.String("query", compact(query)), zap.Error(err))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Execute runs a parameterized statement and reports the inserted id and affected row count
func (db *DB) Execute(ctx context.Context, query string, args ...interface{}) (ExecResult, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		db.logger.Error("Execute failed", zap.String("query", compact(query)), zap.Error(err))
		return ExecResult{}, fmt.Errorf("execute failed: %w", err)
	}

	var out ExecResult
	if id, err := res.LastInsertId(); err == nil {
		out.InsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.AffectedRows = n
	}
	return out, nil
}

// ColumnExists reports whether table has a column with the given name
func (db *DB) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	if !identifierRe.MatchString(table) {
		return false, fmt.Errorf("invalid table name: %q", table)
	}

	rows, err := db.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if name, ok := row["name"].(string); ok && strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, nil
}

// Placeholders returns n comma separated bind markers for an IN (...) clause
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
