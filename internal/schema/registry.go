// Package schema reads the declaration of record types and their file-like
// fields. The declaration is the source the reference catalog is built from.
package schema

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Field types that hold managed item references.
const (
	FieldTypeFile  = "file"
	FieldTypeImage = "image"
)

// Naming defaults for generated storage.
const (
	DefaultIDColumn       = "id"
	DefaultFieldIDColumn  = "entity_id"
	DefaultVersionColumn  = "revision_id"
	DefaultDeltaColumn    = "delta"
	currentTableSeparator = "__"
	historyTableInfix     = "_revision__"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether s is safe to splice into SQL as a table
// or column name.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Registry is the full declaration.
type Registry struct {
	RecordTypes []RecordType `yaml:"record_types"`
}

// RecordType declares one record type and its storage.
type RecordType struct {
	Name           string  `yaml:"name"`
	BaseTable      string  `yaml:"base_table,omitempty"`
	IDColumn       string  `yaml:"id_column,omitempty"`
	RevisionColumn string  `yaml:"revision_column,omitempty"`
	Fields         []Field `yaml:"fields"`
}

// Revisioned reports whether the record type keeps history.
func (rt RecordType) Revisioned() bool {
	return rt.RevisionColumn != ""
}

// Field declares one field. Only file and image fields are references;
// other types are accepted and ignored.
type Field struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	CurrentTable string `yaml:"current_table,omitempty"`
	HistoryTable string `yaml:"history_table,omitempty"`
	Column       string `yaml:"column,omitempty"`
}

// IsReference reports whether the field stores managed item IDs.
func (f Field) IsReference() bool {
	return f.Type == FieldTypeFile || f.Type == FieldTypeImage
}

// Storage is the resolved physical layout of one reference field.
type Storage struct {
	RecordType    string
	FieldName     string
	FieldType     string
	CurrentTable  string
	Column        string
	IDColumn      string
	HistoryTable  string
	VersionColumn string
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a registry document, filling defaults.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	reg.applyDefaults()
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) applyDefaults() {
	for i := range r.RecordTypes {
		rt := &r.RecordTypes[i]
		if rt.BaseTable == "" {
			rt.BaseTable = rt.Name
		}
		if rt.IDColumn == "" {
			rt.IDColumn = DefaultIDColumn
		}
		for j := range rt.Fields {
			f := &rt.Fields[j]
			if !f.IsReference() {
				continue
			}
			if f.CurrentTable == "" {
				f.CurrentTable = rt.Name + currentTableSeparator + f.Name
			}
			if f.Column == "" {
				f.Column = f.Name + "_fid"
			}
			if rt.Revisioned() && f.HistoryTable == "" {
				f.HistoryTable = rt.Name + historyTableInfix + f.Name
			}
		}
	}
}

// Validate checks names and uniqueness.
func (r *Registry) Validate() error {
	seen := make(map[string]bool)
	tables := make(map[string]string)

	claim := func(table, owner string) error {
		if prev, ok := tables[table]; ok {
			return fmt.Errorf("table %q used by both %s and %s", table, prev, owner)
		}
		tables[table] = owner
		return nil
	}

	for _, rt := range r.RecordTypes {
		if !ValidIdentifier(rt.Name) {
			return fmt.Errorf("invalid record type name %q", rt.Name)
		}
		if seen[rt.Name] {
			return fmt.Errorf("record type %q declared twice", rt.Name)
		}
		seen[rt.Name] = true

		for _, ident := range []string{rt.BaseTable, rt.IDColumn} {
			if !ValidIdentifier(ident) {
				return fmt.Errorf("record type %s: invalid identifier %q", rt.Name, ident)
			}
		}
		if rt.Revisioned() && !ValidIdentifier(rt.RevisionColumn) {
			return fmt.Errorf("record type %s: invalid revision column %q", rt.Name, rt.RevisionColumn)
		}
		if err := claim(rt.BaseTable, rt.Name); err != nil {
			return err
		}

		fieldSeen := make(map[string]bool)
		for _, f := range rt.Fields {
			if !ValidIdentifier(f.Name) {
				return fmt.Errorf("record type %s: invalid field name %q", rt.Name, f.Name)
			}
			if fieldSeen[f.Name] {
				return fmt.Errorf("record type %s: field %q declared twice", rt.Name, f.Name)
			}
			fieldSeen[f.Name] = true
			if !f.IsReference() {
				continue
			}
			owner := rt.Name + "." + f.Name
			for _, ident := range []string{f.CurrentTable, f.Column} {
				if !ValidIdentifier(ident) {
					return fmt.Errorf("field %s: invalid identifier %q", owner, ident)
				}
			}
			if err := claim(f.CurrentTable, owner); err != nil {
				return err
			}
			if f.HistoryTable != "" {
				if !rt.Revisioned() {
					return fmt.Errorf("field %s: history table declared on a record type without revisions", owner)
				}
				if !ValidIdentifier(f.HistoryTable) {
					return fmt.Errorf("field %s: invalid identifier %q", owner, f.HistoryTable)
				}
				if err := claim(f.HistoryTable, owner); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReferenceStorage returns the resolved storage of every reference field,
// in declaration order.
func (r *Registry) ReferenceStorage() []Storage {
	var out []Storage
	for _, rt := range r.RecordTypes {
		for _, f := range rt.Fields {
			if !f.IsReference() {
				continue
			}
			s := Storage{
				RecordType:   rt.Name,
				FieldName:    f.Name,
				FieldType:    f.Type,
				CurrentTable: f.CurrentTable,
				Column:       f.Column,
				IDColumn:     DefaultFieldIDColumn,
			}
			if f.HistoryTable != "" {
				s.HistoryTable = f.HistoryTable
				s.VersionColumn = DefaultVersionColumn
			}
			out = append(out, s)
		}
	}
	return out
}
