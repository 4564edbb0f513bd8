// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Record and field tables are created through
// RegistryRepository.Sync from testRegistryYAML, never by hand.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/example/filedupe/internal/adapters/sqlite"
	"github.com/example/filedupe/internal/db"
	"github.com/example/filedupe/internal/ports/secondary"
	"github.com/example/filedupe/internal/schema"
)

// testRegistryYAML declares a revisioned article type with two reference
// fields and a page type without revisions.
const testRegistryYAML = `
record_types:
  - name: article
    revision_column: vid
    fields:
      - name: image
        type: image
      - name: attachments
        type: file
      - name: title
        type: text
  - name: page
    fields:
      - name: document
        type: file
`

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is a fresh database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// setupRegistryDB returns a database with testRegistryYAML synced.
func setupRegistryDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB := setupTestDB(t)
	reg, err := schema.Parse([]byte(testRegistryYAML))
	require.NoError(t, err)

	_, err = sqlite.NewRegistryRepository(testDB).Sync(context.Background(), reg)
	require.NoError(t, err)
	return testDB
}

// seedFile inserts a managed file and returns its ID.
func seedFile(t *testing.T, testDB *sql.DB, id, size int64, mime string) int64 {
	t.Helper()

	item := &secondary.ManagedItem{ID: id, Size: size, MimeType: mime, Locator: "public://seed.bin"}
	if err := sqlite.NewItemRepository(testDB).Create(context.Background(), item, "seed.bin"); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	return item.ID
}

// seedUsage inserts a usage row.
func seedUsage(t *testing.T, testDB *sql.DB, fid int64, module, recordType, recordID string, count int) {
	t.Helper()

	_, err := testDB.Exec("INSERT INTO file_usage (fid, module, type, id, count) VALUES (?, ?, ?, ?, ?)",
		fid, module, recordType, recordID, count)
	if err != nil {
		t.Fatalf("failed to seed usage: %v", err)
	}
}

// countRows returns the number of rows in table matching where.
func countRows(t *testing.T, testDB *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := testDB.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func int64Ptr(v int64) *int64 { return &v }
