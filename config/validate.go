package config

import (
	"fmt"
)

var checksumAlgorithms = map[string]bool{
	"md5sum": true,
	"xxh3":   true,
}

// Validate checks the structure of the configuration. Synthesis styles and
// field references are checked later, against the parsed schema.
func (cfg *Config) Validate() error {
	if cfg.Export.SchemaFile == "" {
		return fmt.Errorf("invalid config: export.schema_file or databases.source.name is required")
	}

	switch cfg.ValidationMode {
	case LenientValidation, StrictValidation:
	default:
		return fmt.Errorf("invalid config: unknown validation_mode %q", cfg.ValidationMode)
	}

	if cfg.Verification.Checksums.Enabled && !checksumAlgorithms[cfg.Verification.Checksums.Algorithm] {
		return fmt.Errorf("invalid config: unsupported checksum algorithm %q", cfg.Verification.Checksums.Algorithm)
	}

	for i, rule := range cfg.Scrubbing.RandomNames {
		if rule.Table == "" {
			return fmt.Errorf("invalid config: scrubbing.random_names[%d]: empty table name", i)
		}
		if len(rule.Fields) == 0 {
			return fmt.Errorf("invalid config: scrubbing.random_names[%d]: no fields for table %s", i, rule.Table)
		}
		for _, field := range rule.Fields {
			if field == "" {
				return fmt.Errorf("invalid config: scrubbing.random_names[%d]: empty field name", i)
			}
		}
	}

	groups := []struct {
		name  string
		field StandardizeField
	}{
		{"address", cfg.Standardize.Address},
		{"phone", cfg.Standardize.Phone},
		{"email", cfg.Standardize.Email},
	}
	for _, g := range groups {
		for i, target := range g.field.Fields {
			if target.Table == "" || target.Field == "" {
				return fmt.Errorf("invalid config: standardize.%s.fields[%d]: table and field are required", g.name, i)
			}
		}
	}

	for i, combo := range cfg.CombinationFields {
		if combo.Table == "" || combo.TargetField == "" {
			return fmt.Errorf("invalid config: combination_fields[%d]: table and target_field are required", i)
		}
		if len(combo.Fields) == 0 {
			return fmt.Errorf("invalid config: combination_fields[%d]: no source fields", i)
		}
		for j, src := range combo.Fields {
			if src.SourceField == "" {
				return fmt.Errorf("invalid config: combination_fields[%d].fields[%d]: empty source_field", i, j)
			}
		}
	}

	for i, table := range cfg.ExcludedTables {
		if table == "" {
			return fmt.Errorf("invalid config: excluded_tables[%d]: empty table name", i)
		}
	}
	return nil
}
