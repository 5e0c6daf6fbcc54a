package repository

import (
	"database/sql"
	"testing"

	"github.com/foxzi/coldreach/internal/web/db"
	"github.com/foxzi/coldreach/internal/web/seal"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database.DB
}

func testBox(t *testing.T) *seal.Box {
	t.Helper()
	box, err := seal.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("seal.New() error = %v", err)
	}
	return box
}
