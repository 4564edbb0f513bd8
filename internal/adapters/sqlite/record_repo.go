package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/filedupe/internal/ports/secondary"
	"github.com/example/filedupe/internal/schema"
)

// RecordRepository implements secondary.RecordStore and
// secondary.HistoryWriter over the tables declared in record_types and
// reference_fields.
type RecordRepository struct {
	db      *sql.DB
	catalog *ReferenceCatalog
}

// NewRecordRepository creates a new SQLite record repository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db, catalog: NewReferenceCatalog(db)}
}

type recordTypeRow struct {
	baseTable      string
	idColumn       string
	revisionColumn string
}

func (r *RecordRepository) recordType(ctx context.Context, recordType string) (*recordTypeRow, error) {
	var (
		row      recordTypeRow
		revision sql.NullString
	)
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT base_table, id_column, revision_column FROM record_types WHERE record_type = ?",
		recordType,
	).Scan(&row.baseTable, &row.idColumn, &revision)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", recordType, secondary.ErrNoStorage)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up record type %s: %w", recordType, err)
	}
	row.revisionColumn = revision.String

	for _, ident := range []string{row.baseTable, row.idColumn} {
		if !schema.ValidIdentifier(ident) {
			return nil, fmt.Errorf("record type %s: invalid identifier %q", recordType, ident)
		}
	}
	if row.revisionColumn != "" && !schema.ValidIdentifier(row.revisionColumn) {
		return nil, fmt.Errorf("record type %s: invalid identifier %q", recordType, row.revisionColumn)
	}
	return &row, nil
}

// Create inserts the base row of a record. revisionID is ignored for record
// types without revisions.
func (r *RecordRepository) Create(ctx context.Context, recordType, recordID string, revisionID *int64) error {
	rt, err := r.recordType(ctx, recordType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", quoteIdent(rt.baseTable), quoteIdent(rt.idColumn))
	args := []any{recordID}
	if rt.revisionColumn != "" {
		query = fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
			quoteIdent(rt.baseTable), quoteIdent(rt.idColumn), quoteIdent(rt.revisionColumn))
		args = append(args, nullableInt(revisionID))
	}

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", recordType, recordID, err)
	}
	return nil
}

// Load reads the live record with every reference field populated.
func (r *RecordRepository) Load(ctx context.Context, recordType, recordID string) (*secondary.LiveRecord, error) {
	rt, err := r.recordType(ctx, recordType)
	if err != nil {
		return nil, err
	}

	record := &secondary.LiveRecord{
		RecordType: recordType,
		RecordID:   recordID,
		Fields:     make(map[string][]int64),
	}

	var (
		query    string
		revision sql.NullInt64
		dest     []any
		id       string
	)
	if rt.revisionColumn != "" {
		query = fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ?",
			quoteIdent(rt.idColumn), quoteIdent(rt.revisionColumn), quoteIdent(rt.baseTable), quoteIdent(rt.idColumn))
		dest = []any{&id, &revision}
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			quoteIdent(rt.idColumn), quoteIdent(rt.baseTable), quoteIdent(rt.idColumn))
		dest = []any{&id}
	}

	err = conn(ctx, r.db).QueryRowContext(ctx, query, recordID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", recordType, recordID, secondary.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", recordType, recordID, err)
	}
	if revision.Valid {
		rev := revision.Int64
		record.RevisionID = &rev
	}

	fields, err := r.catalog.FieldsFor(ctx, recordType)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		values, err := r.loadField(ctx, f, recordID)
		if err != nil {
			return nil, err
		}
		record.Fields[f.FieldName] = values
	}
	return record, nil
}

func (r *RecordRepository) loadField(ctx context.Context, f secondary.ReferenceFieldDescriptor, recordID string) ([]int64, error) {
	if err := validateDescriptor(f); err != nil {
		return nil, err
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s ASC",
			quoteIdent(f.Column), quoteIdent(f.CurrentTable), quoteIdent(f.IDColumn), quoteIdent(schema.DefaultDeltaColumn)),
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load field %s.%s: %w", f.RecordType, f.FieldName, err)
	}
	defer rows.Close()

	values := []int64{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan field %s.%s: %w", f.RecordType, f.FieldName, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate field %s.%s: %w", f.RecordType, f.FieldName, err)
	}
	return values, nil
}

// Save replaces the current rows of every reference field present in
// record.Fields and refreshes the head revision's history rows. Fields the
// registry does not know are ignored.
func (r *RecordRepository) Save(ctx context.Context, record *secondary.LiveRecord) error {
	if _, err := r.recordType(ctx, record.RecordType); err != nil {
		return err
	}

	fields, err := r.catalog.FieldsFor(ctx, record.RecordType)
	if err != nil {
		return err
	}

	q := conn(ctx, r.db)
	revision := nullableInt(record.RevisionID)

	for _, f := range fields {
		values, ok := record.Fields[f.FieldName]
		if !ok {
			continue
		}
		if err := validateDescriptor(f); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(f.CurrentTable), quoteIdent(f.IDColumn)),
			record.RecordID,
		); err != nil {
			return fmt.Errorf("failed to clear %s: %w", f.CurrentTable, err)
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?)",
			quoteIdent(f.CurrentTable), quoteIdent(f.IDColumn), quoteIdent(schema.DefaultVersionColumn),
			quoteIdent(schema.DefaultDeltaColumn), quoteIdent(f.Column))
		for delta, v := range values {
			if _, err := q.ExecContext(ctx, insert, record.RecordID, revision, delta, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.CurrentTable, err)
			}
		}

		if !f.HasHistory() || record.RevisionID == nil {
			continue
		}

		hist, ver := *f.HistoryTable, *f.HistoryVersionColumn
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", quoteIdent(hist), quoteIdent(f.IDColumn), quoteIdent(ver)),
			record.RecordID, *record.RevisionID,
		); err != nil {
			return fmt.Errorf("failed to clear head revision in %s: %w", hist, err)
		}
		insert = fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?)",
			quoteIdent(hist), quoteIdent(f.IDColumn), quoteIdent(ver),
			quoteIdent(schema.DefaultDeltaColumn), quoteIdent(f.Column))
		for delta, v := range values {
			if _, err := q.ExecContext(ctx, insert, record.RecordID, *record.RevisionID, delta, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", hist, err)
			}
		}
	}
	return nil
}

// AddRevision copies the current field rows of a revisioned record into its
// history tables as revisionID and makes revisionID the head.
func (r *RecordRepository) AddRevision(ctx context.Context, recordType, recordID string, revisionID int64) error {
	record, err := r.Load(ctx, recordType, recordID)
	if err != nil {
		return err
	}
	rt, err := r.recordType(ctx, recordType)
	if err != nil {
		return err
	}
	if rt.revisionColumn == "" {
		return fmt.Errorf("record type %s does not keep revisions", recordType)
	}

	if _, err := conn(ctx, r.db).ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
			quoteIdent(rt.baseTable), quoteIdent(rt.revisionColumn), quoteIdent(rt.idColumn)),
		revisionID, recordID,
	); err != nil {
		return fmt.Errorf("failed to set head revision of %s %s: %w", recordType, recordID, err)
	}

	record.RevisionID = &revisionID
	return r.Save(ctx, record)
}

// RewriteHistory applies one direct history update and returns the rows
// affected. The head revision is skipped when ExcludeRevision is set.
func (r *RecordRepository) RewriteHistory(ctx context.Context, u secondary.HistoryUpdate) (int64, error) {
	for _, ident := range []string{u.Table, u.Column, u.IDColumn, u.VersionColumn} {
		if !schema.ValidIdentifier(ident) {
			return 0, fmt.Errorf("history update: invalid identifier %q", ident)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s = ? WHERE %s = ? AND %s = ?",
		quoteIdent(u.Table), quoteIdent(u.Column), quoteIdent(u.Column), quoteIdent(u.IDColumn))
	args := []any{u.To, u.From, u.RecordID}
	if u.ExcludeRevision != nil {
		fmt.Fprintf(&b, " AND %s <> ?", quoteIdent(u.VersionColumn))
		args = append(args, *u.ExcludeRevision)
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite history in %s: %w", u.Table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count rewritten history rows: %w", err)
	}
	return n, nil
}

func validateDescriptor(f secondary.ReferenceFieldDescriptor) error {
	idents := []string{f.CurrentTable, f.Column, f.IDColumn}
	if f.HasHistory() {
		idents = append(idents, *f.HistoryTable, *f.HistoryVersionColumn)
	}
	for _, ident := range idents {
		if !schema.ValidIdentifier(ident) {
			return fmt.Errorf("field %s.%s: invalid identifier %q", f.RecordType, f.FieldName, ident)
		}
	}
	return nil
}

// quoteIdent quotes an already validated identifier.
func quoteIdent(s string) string {
	return `"` + s + `"`
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Ensure RecordRepository implements the interfaces.
var (
	_ secondary.RecordStore   = (*RecordRepository)(nil)
	_ secondary.HistoryWriter = (*RecordRepository)(nil)
)
