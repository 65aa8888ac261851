package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTest opens a migrated database in t.TempDir() and closes it on cleanup.
func OpenTest(t testing.TB) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
