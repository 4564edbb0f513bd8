package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/filedupe/internal/schema"
)

// RegistryRepository materialises a schema.Registry: it creates the record
// and field tables and replaces the contents of record_types and
// reference_fields.
type RegistryRepository struct {
	db *sql.DB
	tx *Transactor
}

// NewRegistryRepository creates a new registry repository.
func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db, tx: NewTransactor(db)}
}

// SyncResult reports what a sync registered.
type SyncResult struct {
	RecordTypes     int
	ReferenceFields int
}

// Sync applies reg in one transaction, joining the caller's when ctx carries
// one. Existing tables and their rows are kept; only the registry rows are
// replaced. Identifiers were validated by the schema package and are quoted
// again here.
func (r *RegistryRepository) Sync(ctx context.Context, reg *schema.Registry) (*SyncResult, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	result := &SyncResult{}
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		if _, err := q.ExecContext(ctx, "DELETE FROM reference_fields"); err != nil {
			return fmt.Errorf("failed to clear reference fields: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM record_types"); err != nil {
			return fmt.Errorf("failed to clear record types: %w", err)
		}

		for _, rt := range reg.RecordTypes {
			if err := createBaseTable(ctx, q, rt); err != nil {
				return err
			}

			var revisionColumn any
			if rt.Revisioned() {
				revisionColumn = rt.RevisionColumn
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO record_types (record_type, base_table, id_column, revision_column) VALUES (?, ?, ?, ?)",
				rt.Name, rt.BaseTable, rt.IDColumn, revisionColumn,
			); err != nil {
				return fmt.Errorf("failed to register record type %s: %w", rt.Name, err)
			}
			result.RecordTypes++
		}

		for _, s := range reg.ReferenceStorage() {
			if err := createFieldTables(ctx, q, s); err != nil {
				return err
			}

			var historyTable, versionColumn any
			if s.HistoryTable != "" {
				historyTable = s.HistoryTable
				versionColumn = s.VersionColumn
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO reference_fields
					(record_type, field_name, field_type, current_table, column_name, id_column, history_table, history_version_column)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				s.RecordType, s.FieldName, s.FieldType, s.CurrentTable, s.Column, s.IDColumn, historyTable, versionColumn,
			); err != nil {
				return fmt.Errorf("failed to register field %s.%s: %w", s.RecordType, s.FieldName, err)
			}
			result.ReferenceFields++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("schema sync failed: %w", err)
	}
	return result, nil
}

func createBaseTable(ctx context.Context, q querier, rt schema.RecordType) error {
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY",
		quoteIdent(rt.BaseTable), quoteIdent(rt.IDColumn))
	if rt.Revisioned() {
		ddl += fmt.Sprintf(", %s INTEGER", quoteIdent(rt.RevisionColumn))
	}
	ddl += ")"

	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table for %s: %w", rt.Name, err)
	}
	return nil
}

func createFieldTables(ctx context.Context, q querier, s schema.Storage) error {
	current := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s TEXT NOT NULL,
		%s INTEGER,
		%s INTEGER NOT NULL,
		%s INTEGER NOT NULL,
		PRIMARY KEY (%s, %s)
	)`,
		quoteIdent(s.CurrentTable),
		quoteIdent(s.IDColumn), quoteIdent(schema.DefaultVersionColumn), quoteIdent(schema.DefaultDeltaColumn), quoteIdent(s.Column),
		quoteIdent(s.IDColumn), quoteIdent(schema.DefaultDeltaColumn),
	)
	if _, err := q.ExecContext(ctx, current); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.CurrentTable, err)
	}

	if s.HistoryTable == "" {
		return nil
	}

	history := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s TEXT NOT NULL,
		%s INTEGER NOT NULL,
		%s INTEGER NOT NULL,
		%s INTEGER NOT NULL,
		PRIMARY KEY (%s, %s, %s)
	)`,
		quoteIdent(s.HistoryTable),
		quoteIdent(s.IDColumn), quoteIdent(s.VersionColumn), quoteIdent(schema.DefaultDeltaColumn), quoteIdent(s.Column),
		quoteIdent(s.IDColumn), quoteIdent(s.VersionColumn), quoteIdent(schema.DefaultDeltaColumn),
	)
	if _, err := q.ExecContext(ctx, history); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.HistoryTable, err)
	}
	return nil
}
