package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andys/unlscrub/anonymizer"
	"github.com/andys/unlscrub/config"
	"github.com/andys/unlscrub/db"
	"github.com/andys/unlscrub/worker"
	"github.com/brianvoe/gofakeit/v7"
)

// Logger is the run log used by the export job
type Logger interface {
	Log(msg string)
	Logf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Result describes a finished run
type Result struct {
	Tables     []string
	Summary    *worker.RunSummary
	LoadScript string
	Checks     []TableCheck
	LoadedRows map[string]int64
}

// Exporter copies an export directory to the target, scrubs every included
// table and writes the load script.
type Exporter struct {
	cfg       *config.Config
	log       Logger
	catalog   db.Catalog
	tables    []string
	processor *worker.Processor
	targetDB  *db.Connection
}

// Option adjusts the table processor's settings
type Option func(*worker.Options)

// WithSleep replaces the sleep used between table retries
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *worker.Options) {
		o.Sleep = sleep
	}
}

// New performs the run's setup: schema parsing, word lists, rule
// validation and the optional target database connection. Any error here
// aborts the run before table work starts.
func New(cfg *config.Config, log Logger, opts ...Option) (*Exporter, error) {
	schemaPath := cfg.Export.SchemaFile
	if !filepath.IsAbs(schemaPath) {
		schemaPath = filepath.Join(cfg.SourceDir, schemaPath)
	}
	catalog, err := db.ParseSchemaFile(schemaPath)
	if err != nil {
		return nil, err
	}
	log.Logf("Parsed %d tables from %s", len(catalog), schemaPath)

	words, err := anonymizer.LoadWords(cfg.Export.AdjectivesFile, cfg.Export.NounsFile, gofakeit.New(cfg.Export.RandomSeed))
	if err != nil {
		return nil, err
	}
	for _, file := range words.Generated {
		log.Warnf("Word list %s missing or empty, using generated words", file)
	}

	engine, err := anonymizer.NewEngine(catalog, anonymizer.RulesFromConfig(cfg), cfg.Strict())
	if err != nil {
		return nil, err
	}
	for _, ref := range engine.Unresolved() {
		log.Warnf("Skipping unresolved %s", ref)
	}

	e := &Exporter{
		cfg:     cfg,
		log:     log,
		catalog: catalog,
		tables:  worker.SelectTables(catalog, cfg.ExcludedTables),
	}

	targetURL := cfg.TargetDBURL
	if targetURL == "" {
		targetURL = cfg.Databases.Target.URL
	}
	if targetURL != "" {
		conn, err := db.Connect(targetURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to target database: %w", err)
		}
		conn.Verbose = cfg.Verbose
		e.targetDB = conn
		log.Logf("Connected to target %s database", conn.Type)
	}

	procOpts := worker.Options{
		SourceDir: cfg.SourceDir,
		TargetDir: cfg.TargetDir,
		Workers:   cfg.WorkerCount,
		Seed:      cfg.Export.RandomSeed,
	}
	for _, opt := range opts {
		opt(&procOpts)
	}
	e.processor = worker.NewProcessor(catalog, engine, words, log, procOpts)
	return e, nil
}

// Tables returns the tables the run processes, sorted
func (e *Exporter) Tables() []string {
	return e.tables
}

// Progress exposes the processor's live counters
func (e *Exporter) Progress() *worker.Progress {
	return e.processor.GetProgress()
}

// Run executes the export. On table failures the returned error is a
// *worker.AggregateError and no load script is written.
func (e *Exporter) Run() (*Result, error) {
	result := &Result{Tables: e.tables}
	e.log.Log("Starting export processing")

	skip := SkipDataFiles(e.catalog, e.cfg.ExcludedTables)
	if err := CopyTree(e.cfg.SourceDir, e.cfg.TargetDir, skip); err != nil {
		return result, fmt.Errorf("failed to copy source directory: %w", err)
	}
	e.log.Log("Copied source directory to target")

	summary, err := e.processor.Run(e.tables)
	result.Summary = summary
	if err != nil {
		var agg *worker.AggregateError
		if errors.As(err, &agg) {
			e.log.Log(fmt.Sprintf("Completed with %d errors", agg.Failed))
			for _, tableErr := range agg.Errors() {
				e.log.Log(fmt.Sprintf("Error: %v", tableErr))
			}
		}
		return result, err
	}
	e.log.Log("Successfully completed processing")

	result.LoadScript, err = WriteLoadScript(e.cfg.TargetDir, e.catalog, e.tables)
	if err != nil {
		return result, err
	}
	e.log.Logf("Wrote load script %s", result.LoadScript)

	if e.targetDB != nil {
		result.LoadedRows, err = e.loadTargetDB()
		if err != nil {
			e.log.Errorf("Load into target database failed: %v", err)
			return result, err
		}
	}

	result.Checks, err = e.verify()
	if err != nil {
		e.log.Errorf("Verification failed: %v", err)
		return result, fmt.Errorf("verification failed: %w", err)
	}
	return result, nil
}

func (e *Exporter) loadTargetDB() (map[string]int64, error) {
	loaded := make(map[string]int64, len(e.tables))
	for _, table := range e.tables {
		schema, _ := e.catalog.Lookup(table)
		n, err := e.loadTable(schema)
		if err != nil {
			return loaded, err
		}
		loaded[table] = n
		e.log.Logf("Loaded %d rows into %s", n, table)
	}
	return loaded, nil
}

func (e *Exporter) loadTable(schema *db.TableSchema) (int64, error) {
	f, err := os.Open(filepath.Join(e.cfg.TargetDir, schema.DataFile))
	if err != nil {
		return 0, fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()
	return e.targetDB.LoadTable(schema, f)
}

func (e *Exporter) verify() ([]TableCheck, error) {
	opts := VerifyOptions{
		SourceDir:    e.cfg.SourceDir,
		TargetDir:    e.cfg.TargetDir,
		Checksums:    e.cfg.Verification.Checksums.Enabled,
		Algorithm:    e.cfg.Verification.Checksums.Algorithm,
		RecordCounts: e.cfg.Verification.RecordCounts.Enabled,
		SampleTables: e.cfg.Verification.RecordCounts.SampleTables,
	}
	if e.targetDB != nil {
		opts.Counter = e.targetDB
	}

	checks, err := Verify(e.catalog, e.tables, opts)
	for _, check := range checks {
		e.log.Logf("Verified %s: %d lines", check.Table, check.TargetLines)
		if check.Checksum != "" {
			e.log.Debugf("%s %s: %s", opts.Algorithm, check.DataFile, check.Checksum)
		}
		if check.DBChecked {
			e.log.Logf("Verified %s: %d rows in target database", check.Table, check.DBRows)
		}
	}
	return checks, err
}

// Close stops the worker pool and closes the target database
func (e *Exporter) Close() error {
	e.processor.Stop()
	if e.targetDB != nil {
		return e.targetDB.Close()
	}
	return nil
}
