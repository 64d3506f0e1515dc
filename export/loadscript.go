package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andys/unlscrub/db"
)

// LoadScriptName is the load script written into the target directory
const LoadScriptName = "load_data.sql"

// RenderLoadScript returns a delete-then-load statement pair for each
// table, in name order.
func RenderLoadScript(catalog db.Catalog, tables []string) []byte {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	buf.WriteString("-- Generated SQL for loading processed data\n\n")
	for _, table := range sorted {
		schema, ok := catalog.Lookup(table)
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "DELETE FROM %s;\nLOAD FROM %s INSERT INTO %s;\n\n", table, schema.DataFile, table)
	}
	return buf.Bytes()
}

// WriteLoadScript writes the load script to dir and returns its path
func WriteLoadScript(dir string, catalog db.Catalog, tables []string) (string, error) {
	path := filepath.Join(dir, LoadScriptName)
	if err := os.WriteFile(path, RenderLoadScript(catalog, tables), 0o644); err != nil {
		return "", fmt.Errorf("failed to write load script: %w", err)
	}
	return path, nil
}
