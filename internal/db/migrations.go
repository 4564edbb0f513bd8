package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_catalog_usage_and_registry_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_insertion_order_to_duplicate_files",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_exempt_files",
		Up:      migrationV3,
	},
}

func createVersionTable(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(database *sql.DB) error {
	if err := createVersionTable(database); err != nil {
		return err
	}

	var currentVersion int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Running migration")

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates everything except the ledger, which older installs
// already carry in its original four-column shape.
func migrationV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS managed_files (
			fid INTEGER PRIMARY KEY,
			filename TEXT NOT NULL DEFAULT '',
			uri TEXT NOT NULL,
			filemime TEXT NOT NULL DEFAULT 'application/octet-stream',
			filesize INTEGER NOT NULL DEFAULT 0,
			status INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_managed_files_size_mime ON managed_files(filesize, filemime, fid)`,
		`CREATE TABLE IF NOT EXISTS file_usage (
			fid INTEGER NOT NULL,
			module TEXT NOT NULL,
			type TEXT NOT NULL,
			id TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (fid, module, type, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_usage_type_id ON file_usage(type, id)`,
		`CREATE TABLE IF NOT EXISTS record_types (
			record_type TEXT PRIMARY KEY,
			base_table TEXT NOT NULL,
			id_column TEXT NOT NULL DEFAULT 'id',
			revision_column TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS reference_fields (
			record_type TEXT NOT NULL,
			field_name TEXT NOT NULL,
			field_type TEXT NOT NULL CHECK(field_type IN ('file', 'image')) DEFAULT 'file',
			current_table TEXT NOT NULL,
			column_name TEXT NOT NULL,
			id_column TEXT NOT NULL DEFAULT 'entity_id',
			history_table TEXT,
			history_version_column TEXT,
			PRIMARY KEY (record_type, field_name)
		)`,
		`CREATE TABLE IF NOT EXISTS duplicate_files (
			fid INTEGER NOT NULL,
			original_fid INTEGER NOT NULL,
			exact INTEGER NOT NULL DEFAULT 0,
			replaced_timestamp INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrationV2 rebuilds duplicate_files with an AUTOINCREMENT id so that
// unresolved rows are drained in insertion order.
func migrationV2(tx *sql.Tx) error {
	var hasID int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('duplicate_files') WHERE name = 'id'").Scan(&hasID)
	if err != nil {
		return fmt.Errorf("failed to inspect duplicate_files: %w", err)
	}
	if hasID > 0 {
		return nil
	}

	stmts := []string{
		`CREATE TABLE duplicate_files_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fid INTEGER NOT NULL,
			original_fid INTEGER NOT NULL,
			exact INTEGER NOT NULL DEFAULT 0,
			replaced_timestamp INTEGER,
			CHECK (fid <> original_fid)
		)`,
		`INSERT INTO duplicate_files_new (fid, original_fid, exact, replaced_timestamp)
			SELECT fid, original_fid, exact, replaced_timestamp FROM duplicate_files
			WHERE fid <> original_fid ORDER BY rowid`,
		`DROP TABLE duplicate_files`,
		`ALTER TABLE duplicate_files_new RENAME TO duplicate_files`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_files_fid ON duplicate_files(fid)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_files_original ON duplicate_files(original_fid)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_files_unresolved ON duplicate_files(replaced_timestamp, id)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS exempt_files (
		fid INTEGER PRIMARY KEY,
		reason TEXT NOT NULL DEFAULT ''
	)`)
	return err
}
