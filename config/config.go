package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	LenientValidation = "lenient"
	StrictValidation  = "strict"
)

// Config holds the export scrubbing configuration
type Config struct {
	Databases         DatabaseConfig      `yaml:"databases"`
	ExcludedTables    []string            `yaml:"excluded_tables"`
	Export            ExportConfig        `yaml:"export"`
	Verification      VerificationConfig  `yaml:"verification"`
	Scrubbing         ScrubbingConfig     `yaml:"scrubbing"`
	Standardize       StandardizeConfig   `yaml:"standardize"`
	CombinationFields []CombinationConfig `yaml:"combination_fields"`
	ValidationMode    string              `yaml:"validation_mode"`

	// Runtime settings, filled from the command line
	SourceDir   string `yaml:"-"`
	TargetDir   string `yaml:"-"`
	ConfigFile  string `yaml:"-"`
	TargetDBURL string `yaml:"-"`
	WorkerCount int    `yaml:"-"`
	Debug       bool   `yaml:"-"`
	Verbose     bool   `yaml:"-"`
}

type DatabaseConfig struct {
	Source  DBInstance    `yaml:"source"`
	Target  DBInstance    `yaml:"target"`
	Testing TestingConfig `yaml:"testing"`
}

// TestingConfig names the databases and helpers used when a scrubbed export
// is restored for verification.
type TestingConfig struct {
	TestLive           string `yaml:"test_live"`
	TempVerify         string `yaml:"temp_verify"`
	VerificationMarker string `yaml:"verification_marker"`
	CleanupScript      string `yaml:"cleanup_script"`
}

type DBInstance struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type ExportConfig struct {
	RandomSeed     uint64 `yaml:"random_seed"`
	SchemaFile     string `yaml:"schema_file"`
	AdjectivesFile string `yaml:"adjectives_file"`
	NounsFile      string `yaml:"nouns_file"`
}

type VerificationConfig struct {
	Logging      LoggingConfig     `yaml:"logging"`
	Checksums    ChecksumConfig    `yaml:"checksums"`
	RecordCounts RecordCountConfig `yaml:"record_counts"`
}

type LoggingConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type ChecksumConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Algorithm string `yaml:"algorithm"`
}

type RecordCountConfig struct {
	Enabled      bool     `yaml:"enabled"`
	SampleTables []string `yaml:"sample_tables"`
}

type ScrubbingConfig struct {
	RandomNames []RandomNameConfig `yaml:"random_names"`
}

type RandomNameConfig struct {
	Table  string   `yaml:"table"`
	Fields []string `yaml:"fields"`
	Style  string   `yaml:"style"`
}

type StandardizeConfig struct {
	Address StandardizeField `yaml:"address"`
	Phone   StandardizeField `yaml:"phone"`
	Email   StandardizeField `yaml:"email"`
}

type StandardizeField struct {
	Value  string       `yaml:"value"`
	Fields []TableField `yaml:"fields"`
}

type TableField struct {
	Table string `yaml:"table"`
	Field string `yaml:"field"`
}

type CombinationConfig struct {
	Table       string        `yaml:"table"`
	Fields      []SourceField `yaml:"fields"`
	Separator   string        `yaml:"separator"`
	TargetField string        `yaml:"target_field"`
}

type SourceField struct {
	SourceField string `yaml:"source_field"`
	RandomStyle string `yaml:"random_style"`
}

// LoadConfig reads and parses the configuration file
func LoadConfig(cfg *Config, filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(cfg, content)
}

// Parse decodes a YAML document into cfg, rejecting unknown keys, and fills
// in defaults for anything left unset.
func Parse(cfg *Config, content []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Export.SchemaFile == "" && cfg.Databases.Source.Name != "" {
		cfg.Export.SchemaFile = cfg.Databases.Source.Name + ".sql"
	}
	if cfg.Export.AdjectivesFile == "" {
		cfg.Export.AdjectivesFile = "adjectives.txt"
	}
	if cfg.Export.NounsFile == "" {
		cfg.Export.NounsFile = "nouns.txt"
	}
	if cfg.Verification.Logging.Directory == "" {
		cfg.Verification.Logging.Directory = "logs"
	}
	if cfg.Verification.Checksums.Algorithm == "" {
		cfg.Verification.Checksums.Algorithm = "md5sum"
	}
	if cfg.ValidationMode == "" {
		cfg.ValidationMode = LenientValidation
	}
}

// Strict reports whether unresolved rule references should fail the run
func (cfg *Config) Strict() bool {
	return cfg.ValidationMode == StrictValidation
}
