package worker

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// Logger is the run log the processor reports lifecycle events to.
// Implementations must be safe for concurrent use.
type Logger interface {
	Log(msg string)
}

// Outcome is the final state of one table task.
type Outcome int

const (
	Success Outcome = iota
	Failed
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failed"
}

// TableResult is the settled result of one table, after retries.
type TableResult struct {
	Table    string
	Outcome  Outcome
	Attempts int
	Lines    int64
	Err      error
}

// RunSummary collects every table result of a run, in table name order.
type RunSummary struct {
	Results  []TableResult
	Duration time.Duration
}

// Failed returns the results that exhausted their retries
func (s *RunSummary) Failed() []TableResult {
	var failed []TableResult
	for _, r := range s.Results {
		if r.Outcome == Failed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Lines is the number of records written across all successful tables
func (s *RunSummary) Lines() int64 {
	var n int64
	for _, r := range s.Results {
		if r.Outcome == Success {
			n += r.Lines
		}
	}
	return n
}

// AggregateError is returned when at least one table failed.
type AggregateError struct {
	Failed int
	Total  int
	Err    error // every per-table error, combined
}

func newAggregateError(summary *RunSummary) *AggregateError {
	agg := &AggregateError{Total: len(summary.Results)}
	for _, r := range summary.Failed() {
		agg.Failed++
		agg.Err = multierr.Append(agg.Err, fmt.Errorf("table %s: %w", r.Table, r.Err))
	}
	return agg
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("failed to process %d tables", e.Failed)
}

func (e *AggregateError) Unwrap() error {
	return e.Err
}

// Errors lists the per-table errors
func (e *AggregateError) Errors() []error {
	return multierr.Errors(e.Err)
}

// Progress tracks table processing for the console display
type Progress struct {
	TotalTables     atomic.Int64
	ProcessedTables atomic.Int64
	FailedTables    atomic.Int64
	Lines           atomic.Int64
	Bytes           atomic.Int64
	StartTime       time.Time

	currentTable atomic.Pointer[string]
}

func (p *Progress) setCurrent(table string) {
	p.currentTable.Store(&table)
}

// CurrentTable is the table most recently started
func (p *Progress) CurrentTable() string {
	if t := p.currentTable.Load(); t != nil {
		return *t
	}
	return ""
}

// Done reports whether every submitted table has settled
func (p *Progress) Done() bool {
	return p.ProcessedTables.Load() >= p.TotalTables.Load()
}
