package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// DateBucketExpr returns a SQL expression that truncates a timestamp
// column to a day/week/month bucket for the current dialect. The
// expression yields the bucket start date as sortable text in both
// dialects.
func DateBucketExpr(conn *gorm.DB, column, granularity string) (string, error) {
	switch granularity {
	case "day", "week", "month":
	default:
		return "", fmt.Errorf("db: unsupported granularity: %s", granularity)
	}

	if IsSQLite(conn) {
		switch granularity {
		case "day":
			return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column), nil
		case "week":
			// Monday of the row's week: advance to the next Sunday, then back six days.
			return fmt.Sprintf("date(%s, 'weekday 0', '-6 days')", column), nil
		default:
			return fmt.Sprintf("strftime('%%Y-%%m-01', %s)", column), nil
		}
	}

	return fmt.Sprintf("to_char(date_trunc('%s', %s), 'YYYY-MM-DD')", granularity, column), nil
}
