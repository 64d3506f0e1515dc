package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/andys/unlscrub/anonymizer"
	"github.com/andys/unlscrub/db"
	"github.com/andys/unlscrub/unl"
	"github.com/samber/lo"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// Options controls where a Processor reads and writes and how it retries.
type Options struct {
	SourceDir   string
	TargetDir   string
	Workers     int    // defaults to runtime.NumCPU()
	Seed        uint64 // 0 means unseeded
	MaxAttempts int
	Backoff     time.Duration
	Sleep       func(time.Duration) // defaults to time.Sleep
}

type transformFunc func(schema *db.TableSchema, plan *anonymizer.TablePlan, seed uint64) (int64, error)

// Processor transforms table data files using a worker pool, one task per
// table. The catalog, engine and word lists are shared read-only.
type Processor struct {
	catalog  db.Catalog
	engine   *anonymizer.Engine
	words    anonymizer.Words
	log      Logger
	opts     Options
	pool     pond.Pool
	progress *Progress

	transform transformFunc
}

// NewProcessor creates a processor and its worker pool
func NewProcessor(catalog db.Catalog, engine *anonymizer.Engine, words anonymizer.Words, log Logger, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	p := &Processor{
		catalog:  catalog,
		engine:   engine,
		words:    words,
		log:      log,
		opts:     opts,
		pool:     pond.NewPool(opts.Workers),
		progress: &Progress{StartTime: time.Now()},
	}
	p.transform = p.transformTable
	return p
}

// SelectTables returns the catalog's tables minus the excluded ones, sorted
func SelectTables(catalog db.Catalog, excluded []string) []string {
	return lo.Without(catalog.Tables(), excluded...)
}

// Run processes every table and waits for all of them to settle. One
// table's failure never stops the others; if any failed the summary is
// returned together with an *AggregateError.
func (p *Processor) Run(tables []string) (*RunSummary, error) {
	start := time.Now()
	p.progress.TotalTables.Store(int64(len(tables)))

	results := make([]TableResult, len(tables))
	group := p.pool.NewGroup()
	for i, table := range tables {
		i, table := i, table
		group.Submit(func() {
			results[i] = p.ProcessTable(table)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to wait for table workers: %w", err)
	}

	summary := &RunSummary{Results: results, Duration: time.Since(start)}
	if len(summary.Failed()) > 0 {
		return summary, newAggregateError(summary)
	}
	return summary, nil
}

// ProcessTable transforms one table with up to MaxAttempts attempts,
// sleeping Backoff between them.
func (p *Processor) ProcessTable(table string) TableResult {
	defer p.progress.ProcessedTables.Add(1)
	p.progress.setCurrent(table)

	result := TableResult{Table: table, Outcome: Failed}
	plan, err := p.engine.Plan(table)
	if err != nil {
		result.Err = err
		p.log.Log(fmt.Sprintf("Error processing table %s: %v", table, err))
		p.progress.FailedTables.Add(1)
		return result
	}
	schema, _ := p.catalog.Lookup(table)
	seed := anonymizer.TableSeed(p.opts.Seed, table)

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		result.Attempts = attempt
		lines, err := p.transform(schema, plan, seed)
		if err == nil {
			result.Outcome = Success
			result.Lines = lines
			result.Err = nil
			return result
		}
		result.Err = err
		if attempt < p.opts.MaxAttempts {
			p.log.Log(fmt.Sprintf("Retry %d of %d for table %s", attempt, p.opts.MaxAttempts, table))
			p.opts.Sleep(p.opts.Backoff)
		}
	}

	p.log.Log(fmt.Sprintf("Error processing table %s: %v", table, result.Err))
	p.progress.FailedTables.Add(1)
	return result
}

// transformTable streams the table's source file through the plan into a
// fresh output file, in input order. Each call starts from scratch with its
// own name generator.
func (p *Processor) transformTable(schema *db.TableSchema, plan *anonymizer.TablePlan, seed uint64) (int64, error) {
	in, err := os.Open(filepath.Join(p.opts.SourceDir, schema.DataFile))
	if err != nil {
		return 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	out, err := NewWriter(filepath.Join(p.opts.TargetDir, schema.DataFile))
	if err != nil {
		return 0, err
	}

	names := anonymizer.NewWordNamer(p.words, seed)
	rd := unl.NewReader(in)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Abort()
			return 0, fmt.Errorf("failed to read %s: %w", schema.DataFile, err)
		}
		if err := plan.Apply(rec, names); err != nil {
			out.Abort()
			return 0, fmt.Errorf("%s line %d: %w", schema.DataFile, rd.Lines(), err)
		}
		if err := out.Write(rec); err != nil {
			out.Abort()
			return 0, err
		}
	}

	if err := out.Commit(); err != nil {
		return 0, err
	}
	p.progress.Lines.Add(out.Lines())
	p.progress.Bytes.Add(rd.BytesRead())
	return out.Lines(), nil
}

// GetProgress returns the live progress counters
func (p *Processor) GetProgress() *Progress {
	return p.progress
}

// Stop stops the worker pool and waits for all tasks to complete
func (p *Processor) Stop() {
	p.pool.StopAndWait()
}
