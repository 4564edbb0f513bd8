package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/filedupe/internal/ports/secondary"
)

// ReferenceCatalog implements secondary.ReferenceCatalog by reading the
// reference_fields registry. Nothing is cached between calls.
type ReferenceCatalog struct {
	db *sql.DB
}

// NewReferenceCatalog creates a new SQLite reference catalog.
func NewReferenceCatalog(db *sql.DB) *ReferenceCatalog {
	return &ReferenceCatalog{db: db}
}

const referenceFieldColumns = `record_type, field_name, current_table, column_name, id_column,
	history_table, history_version_column`

// FieldsFor returns the file-like fields of one record type.
func (c *ReferenceCatalog) FieldsFor(ctx context.Context, recordType string) ([]secondary.ReferenceFieldDescriptor, error) {
	rows, err := conn(ctx, c.db).QueryContext(ctx,
		"SELECT "+referenceFieldColumns+" FROM reference_fields WHERE record_type = ? ORDER BY field_name",
		recordType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference fields of %s: %w", recordType, err)
	}
	return scanDescriptors(rows)
}

// AllReferenceFields returns the file-like fields of every record type.
func (c *ReferenceCatalog) AllReferenceFields(ctx context.Context) ([]secondary.ReferenceFieldDescriptor, error) {
	rows, err := conn(ctx, c.db).QueryContext(ctx,
		"SELECT "+referenceFieldColumns+" FROM reference_fields ORDER BY record_type, field_name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference fields: %w", err)
	}
	return scanDescriptors(rows)
}

// HasStorage reports whether recordType has a registered storage handler.
func (c *ReferenceCatalog) HasStorage(ctx context.Context, recordType string) (bool, error) {
	var n int
	err := conn(ctx, c.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM record_types WHERE record_type = ?",
		recordType,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up storage of %s: %w", recordType, err)
	}
	return n > 0, nil
}

// RecordTypes lists the record types with at least one file-like field.
func (c *ReferenceCatalog) RecordTypes(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, c.db).QueryContext(ctx,
		"SELECT DISTINCT record_type FROM reference_fields ORDER BY record_type",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list record types: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan record type: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record types: %w", err)
	}
	return out, nil
}

func scanDescriptors(rows *sql.Rows) ([]secondary.ReferenceFieldDescriptor, error) {
	defer rows.Close()

	var out []secondary.ReferenceFieldDescriptor
	for rows.Next() {
		var (
			d             secondary.ReferenceFieldDescriptor
			historyTable  sql.NullString
			versionColumn sql.NullString
		)
		if err := rows.Scan(&d.RecordType, &d.FieldName, &d.CurrentTable, &d.Column, &d.IDColumn,
			&historyTable, &versionColumn); err != nil {
			return nil, fmt.Errorf("failed to scan reference field: %w", err)
		}
		if historyTable.Valid && historyTable.String != "" {
			d.HistoryTable = &historyTable.String
		}
		if versionColumn.Valid && versionColumn.String != "" {
			d.HistoryVersionColumn = &versionColumn.String
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reference fields: %w", err)
	}
	return out, nil
}

// Ensure ReferenceCatalog implements the interface.
var _ secondary.ReferenceCatalog = (*ReferenceCatalog)(nil)
