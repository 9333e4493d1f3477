package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCostColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"assistant_message_id", "output_image_units", "web_search_results", "total_cost", "provenance"} {
		if !conn.Migrator().HasColumn("message_token_costs", column) {
			t.Fatalf("message_token_costs missing column %s", column)
		}
	}
}

func TestMigrateSQLiteUsageDayColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"owner_type", "owner_key", "usage_date", "messages_sent", "messages_received", "estimated_cost"} {
		if !conn.Migrator().HasColumn("usage_days", column) {
			t.Fatalf("usage_days missing column %s", column)
		}
	}
}

func TestMigrateBackfillsWebSearchResults(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Running a second time against an existing schema must be a no-op.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("re-migrate: %v", errMigrate)
	}
}
