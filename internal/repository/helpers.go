package repository

import (
	"database/sql"

	"github.com/moreiraracing/taller-motos/pkg/database"
)

// RequiredColumns are added at boot when an older schema lacks them
var RequiredColumns = []database.ColumnSpec{
	{Table: "services", Column: "completed", Definition: "INTEGER NOT NULL DEFAULT 0"},
	{Table: "services", Column: "image_path", Definition: "TEXT DEFAULT NULL"},
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func optString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func optInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// dateOnly trims driver-formatted timestamps ("2024-01-06T00:00:00Z") to the date
func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
