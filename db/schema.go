package db

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// TableSchema represents one exportable table found in the DDL dump.
// Column order is the on-disk field position in the table's data file.
type TableSchema struct {
	Name     string
	DataFile string
	Columns  []ColumnSchema
	HasID    bool // Table has a serial column

	index map[string]int
}

// ColumnSchema represents the structure of a table column
type ColumnSchema struct {
	Name      string
	Type      string
	IsID      bool // True for serial columns
	Nullable  bool
	MaxLength int // Declared length for char/varchar fields
}

// Catalog maps table names to their schema. It is built once per run and
// only read afterwards, so it is safe to share between table workers.
type Catalog map[string]*TableSchema

// ParseError reports a DDL dump that yields no usable schema.
type ParseError struct {
	Table string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("parse schema: table %s: %s", e.Table, e.Msg)
	}
	return "parse schema: " + e.Msg
}

// NewTableSchema builds a schema from an ordered field list.
func NewTableSchema(name, dataFile string, columns []ColumnSchema) *TableSchema {
	s := &TableSchema{
		Name:     name,
		DataFile: dataFile,
		Columns:  columns,
		index:    make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if _, dup := s.index[col.Name]; !dup {
			s.index[col.Name] = i
		}
		if col.IsID {
			s.HasID = true
		}
	}
	return s
}

// FieldIndex resolves a field name to its position
func (s *TableSchema) FieldIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// FieldNames returns the column names in position order
func (s *TableSchema) FieldNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// ParseSchemaFile reads a dbexport .sql file and parses it
func ParseSchemaFile(path string) (Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(string(content))
}

// ParseSchema extracts every exportable table from a dbexport DDL dump.
//
// A table block without an unload directive, or without a create table
// statement, is skipped. A matched table without any recognised column
// aborts the parse, as does a dump in which no table survives.
func ParseSchema(ddl string) (Catalog, error) {
	catalog := make(Catalog)

	for _, block := range splitBlocks(ddl) {
		dataFile, ok := unloadFileName(block)
		if !ok {
			continue
		}

		name, section, ok := createTable(block)
		if !ok {
			continue
		}

		columns := make([]ColumnSchema, 0)
		seen := make(map[string]bool)
		for _, line := range strings.Split(section, "\n") {
			col, ok := columnLine(line)
			if !ok {
				continue
			}
			if seen[col.Name] {
				return nil, &ParseError{Table: name, Msg: fmt.Sprintf("duplicate field %s", col.Name)}
			}
			seen[col.Name] = true
			columns = append(columns, col)
		}

		if len(columns) == 0 {
			return nil, &ParseError{Table: name, Msg: "no fields found"}
		}

		catalog[name] = NewTableSchema(name, dataFile, columns)
	}

	if len(catalog) == 0 {
		return nil, &ParseError{Msg: "no valid tables found"}
	}
	return catalog, nil
}

// Tables returns the catalog's table names in sorted order
func (c Catalog) Tables() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the schema for table, if present
func (c Catalog) Lookup(table string) (*TableSchema, bool) {
	s, ok := c[table]
	return s, ok
}

// DataFileTables maps each data file name back to its table.
func (c Catalog) DataFileTables() map[string]string {
	files := make(map[string]string, len(c))
	for name, s := range c {
		files[s.DataFile] = name
	}
	return files
}
