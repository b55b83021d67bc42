// Package testing provides shared helpers for sift's database-backed tests.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// CreateTestDB opens an in-memory SQLite database configured like db.Open
// configures on-disk ones (foreign keys, busy timeout; WAL does not apply to
// in-memory databases) and closes it via t.Cleanup.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to apply %q: %v", pragma, err)
		}
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
