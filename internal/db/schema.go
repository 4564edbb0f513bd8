package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs, reflecting the state
// after all migrations.
//
// Tests load this through GetSchemaSQL() rather than declaring their own
// tables, so repository code referencing a missing column fails immediately.
//
// Field tables (one current and one history table per reference field) are
// not part of this schema: they are created by the schema registry sync
// because the set of record types is configuration, not code.
const SchemaSQL = `
-- Managed files (the item catalog)
CREATE TABLE IF NOT EXISTS managed_files (
	fid INTEGER PRIMARY KEY,
	filename TEXT NOT NULL DEFAULT '',
	uri TEXT NOT NULL,
	filemime TEXT NOT NULL DEFAULT 'application/octet-stream',
	filesize INTEGER NOT NULL DEFAULT 0,
	status INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_managed_files_size_mime ON managed_files(filesize, filemime, fid);

-- Usage accounting: which owner module uses a file from which record
CREATE TABLE IF NOT EXISTS file_usage (
	fid INTEGER NOT NULL,
	module TEXT NOT NULL,
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (fid, module, type, id)
);

CREATE INDEX IF NOT EXISTS idx_file_usage_type_id ON file_usage(type, id);

-- Files that must never be reported as duplicates
CREATE TABLE IF NOT EXISTS exempt_files (
	fid INTEGER PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT ''
);

-- Record types with a registered storage handler
CREATE TABLE IF NOT EXISTS record_types (
	record_type TEXT PRIMARY KEY,
	base_table TEXT NOT NULL,
	id_column TEXT NOT NULL DEFAULT 'id',
	revision_column TEXT
);

-- Schema registry: every file-like field of every record type
CREATE TABLE IF NOT EXISTS reference_fields (
	record_type TEXT NOT NULL,
	field_name TEXT NOT NULL,
	field_type TEXT NOT NULL CHECK(field_type IN ('file', 'image')) DEFAULT 'file',
	current_table TEXT NOT NULL,
	column_name TEXT NOT NULL,
	id_column TEXT NOT NULL DEFAULT 'entity_id',
	history_table TEXT,
	history_version_column TEXT,
	PRIMARY KEY (record_type, field_name)
);

-- Duplicate ledger
CREATE TABLE IF NOT EXISTS duplicate_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fid INTEGER NOT NULL,
	original_fid INTEGER NOT NULL,
	exact INTEGER NOT NULL DEFAULT 0,
	replaced_timestamp INTEGER,
	CHECK (fid <> original_fid)
);

CREATE INDEX IF NOT EXISTS idx_duplicate_files_fid ON duplicate_files(fid);
CREATE INDEX IF NOT EXISTS idx_duplicate_files_original ON duplicate_files(original_fid);
CREATE INDEX IF NOT EXISTS idx_duplicate_files_unresolved ON duplicate_files(replaced_timestamp, id);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(database *sql.DB) error {
	var tableCount int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if tableCount > 0 {
		return RunMigrations(database)
	}

	var legacyCount int
	err = database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = 'duplicate_files'").Scan(&legacyCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if legacyCount > 0 {
		// Ledger predates versioning; let the migrations bring it forward.
		return RunMigrations(database)
	}

	if _, err := database.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(database); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
