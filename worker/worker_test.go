package worker

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andys/unlscrub/anonymizer"
	"github.com/andys/unlscrub/config"
	"github.com/andys/unlscrub/db"
	"github.com/andys/unlscrub/unl"
	"github.com/frankban/quicktest"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *recordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type fakeSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *fakeSleep) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

func cols(names ...string) []db.ColumnSchema {
	out := make([]db.ColumnSchema, len(names))
	for i, n := range names {
		out[i] = db.ColumnSchema{Name: n, Type: "varchar"}
	}
	return out
}

func testCatalog() db.Catalog {
	return db.Catalog{
		"customers": db.NewTableSchema("customers", "custo00100.unl",
			cols("id", "first_name", "last_name", "email", "address", "phone")),
		"orders": db.NewTableSchema("orders", "order00101.unl", cols("id", "customer_id", "total")),
		"training_config": db.NewTableSchema("training_config", "train00102.unl", cols("id", "value")),
	}
}

func testRules() anonymizer.RuleSet {
	return anonymizer.RuleSet{
		Scrub: []anonymizer.ScrubRule{{Table: "customers", Fields: []string{"first_name", "last_name"}, Style: anonymizer.StyleGithub}},
		Standardize: []anonymizer.StandardizeRule{{
			Name:    "address",
			Value:   "123 Training St",
			Targets: []config.TableField{{Table: "customers", Field: "address"}},
		}},
	}
}

type fixture struct {
	source, target string
	log            *recordingLogger
	sleep          *fakeSleep
	processor      *Processor
}

func newFixture(c *quicktest.C, seed uint64) *fixture {
	dir := c.TempDir()
	f := &fixture{
		source: filepath.Join(dir, "source"),
		target: filepath.Join(dir, "target"),
		log:    &recordingLogger{},
		sleep:  &fakeSleep{},
	}
	c.Assert(os.MkdirAll(f.source, 0o755), quicktest.IsNil)

	engine, err := anonymizer.NewEngine(testCatalog(), testRules(), false)
	c.Assert(err, quicktest.IsNil)
	words := anonymizer.Words{Adjectives: []string{"happy", "brave", "calm"}, Nouns: []string{"fox", "owl", "elk"}}
	f.processor = NewProcessor(testCatalog(), engine, words, f.log, Options{
		SourceDir: f.source,
		TargetDir: f.target,
		Workers:   2,
		Seed:      seed,
		Sleep:     f.sleep.Sleep,
	})
	c.Cleanup(f.processor.Stop)
	return f
}

func (f *fixture) writeSource(c *quicktest.C, name, content string) {
	c.Assert(os.WriteFile(filepath.Join(f.source, name), []byte(content), 0o644), quicktest.IsNil)
}

func TestProcessTable_SucceedsOnThirdAttempt(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)
	calls := 0
	f.processor.transform = func(*db.TableSchema, *anonymizer.TablePlan, uint64) (int64, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("disk hiccup")
		}
		return 7, nil
	}

	result := f.processor.ProcessTable("orders")
	c.Assert(result.Outcome, quicktest.Equals, Success)
	c.Assert(result.Attempts, quicktest.Equals, 3)
	c.Assert(result.Lines, quicktest.Equals, int64(7))
	c.Assert(result.Err, quicktest.IsNil)
	c.Assert(f.sleep.calls, quicktest.DeepEquals, []time.Duration{time.Second, time.Second})
	c.Assert(f.log.Lines(), quicktest.DeepEquals, []string{
		"Retry 1 of 3 for table orders",
		"Retry 2 of 3 for table orders",
	})
	c.Assert(f.processor.GetProgress().CurrentTable(), quicktest.Equals, "orders")
}

func TestRun_FailedTableDoesNotBlockOthers(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)
	f.processor.transform = func(schema *db.TableSchema, _ *anonymizer.TablePlan, _ uint64) (int64, error) {
		if schema.Name == "orders" {
			return 0, errors.New("boom")
		}
		return 1, nil
	}

	summary, err := f.processor.Run([]string{"customers", "orders"})
	var agg *AggregateError
	c.Assert(err, quicktest.ErrorAs, &agg)
	c.Assert(err, quicktest.ErrorMatches, "failed to process 1 tables")
	c.Assert(agg.Failed, quicktest.Equals, 1)
	c.Assert(agg.Total, quicktest.Equals, 2)
	c.Assert(agg.Errors(), quicktest.HasLen, 1)
	c.Assert(agg.Errors()[0], quicktest.ErrorMatches, "table orders: boom")

	c.Assert(summary.Results[0].Outcome, quicktest.Equals, Success)
	c.Assert(summary.Results[1].Outcome, quicktest.Equals, Failed)
	c.Assert(summary.Results[1].Attempts, quicktest.Equals, 3)
	c.Assert(summary.Failed(), quicktest.HasLen, 1)
	c.Assert(f.sleep.calls, quicktest.HasLen, 2)
	c.Assert(f.log.Lines(), quicktest.Contains, "Error processing table orders: boom")

	progress := f.processor.GetProgress()
	c.Assert(progress.CurrentTable(), quicktest.Not(quicktest.Equals), "")
	c.Assert(progress.ProcessedTables.Load(), quicktest.Equals, int64(2))
	c.Assert(progress.FailedTables.Load(), quicktest.Equals, int64(1))
	c.Assert(progress.Done(), quicktest.IsTrue)
}

func TestRun_TransformsDataFiles(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)
	f.writeSource(c, "custo00100.unl", "1001|John|Doe|j@x.com|1 Main St|555-9999|\n1002|Jane|Roe|r@x.com|2 High St|555-1111|\n")
	f.writeSource(c, "order00101.unl", "1|1001|9.99|\n2|1002|19.50|")

	summary, err := f.processor.Run([]string{"customers", "orders"})
	c.Assert(err, quicktest.IsNil)
	c.Assert(summary.Lines(), quicktest.Equals, int64(4))

	out, err := os.Open(filepath.Join(f.target, "custo00100.unl"))
	c.Assert(err, quicktest.IsNil)
	defer out.Close()
	rd := unl.NewReader(out)
	for _, id := range []string{"1001", "1002"} {
		rec, err := rd.Next()
		c.Assert(err, quicktest.IsNil)
		c.Assert(rec.Len(), quicktest.Equals, 6)
		c.Assert(rec.Values[0], quicktest.Equals, id)
		c.Assert(rec.Values[1], quicktest.Matches, `(happy|brave|calm)-(fox|owl|elk)`)
		c.Assert(rec.Values[2], quicktest.Matches, `(happy|brave|calm)-(fox|owl|elk)`)
		c.Assert(rec.Values[4], quicktest.Equals, "123 Training St")
	}

	orders, err := os.ReadFile(filepath.Join(f.target, "order00101.unl"))
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(orders), quicktest.Equals, "1|1001|9.99|\n2|1002|19.50|\n")

	_, err = os.Stat(filepath.Join(f.target, "custo00100.unl"+tmpSuffix))
	c.Assert(os.IsNotExist(err), quicktest.IsTrue)
}

func TestRun_ShortRecordFailsTableWithoutOutput(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)
	f.writeSource(c, "custo00100.unl", "1001|John|Doe|j@x.com|1 Main St|555-9999|\n1002|Jane|\n")

	summary, err := f.processor.Run([]string{"customers"})
	c.Assert(err, quicktest.Not(quicktest.IsNil))
	result := summary.Results[0]
	c.Assert(result.Outcome, quicktest.Equals, Failed)
	c.Assert(result.Attempts, quicktest.Equals, 3)

	var idxErr *unl.IndexError
	c.Assert(result.Err, quicktest.ErrorAs, &idxErr)
	c.Assert(result.Err, quicktest.ErrorMatches, `custo00100.unl line 2: .*field index 2 out of bounds for row with 2 fields`)

	entries, err := os.ReadDir(f.target)
	c.Assert(err, quicktest.IsNil)
	c.Assert(entries, quicktest.HasLen, 0)
}

func TestRun_MissingInputFails(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)

	summary, err := f.processor.Run([]string{"orders"})
	c.Assert(err, quicktest.ErrorMatches, "failed to process 1 tables")
	c.Assert(summary.Results[0].Err, quicktest.ErrorIs, os.ErrNotExist)
}

func TestProcessTable_UnknownTable(t *testing.T) {
	c := quicktest.New(t)
	f := newFixture(c, 0)

	result := f.processor.ProcessTable("invoices")
	c.Assert(result.Outcome, quicktest.Equals, Failed)
	c.Assert(result.Attempts, quicktest.Equals, 0)
	c.Assert(result.Err, quicktest.ErrorMatches, "table 'invoices' not found")
	c.Assert(f.sleep.calls, quicktest.HasLen, 0)
}

func TestRun_SeededOutputIsReproducible(t *testing.T) {
	c := quicktest.New(t)
	input := "1|a|b|c|d|e|\n2|f|g|h|i|j|\n3|k|l|m|n|o|\n"

	run := func() string {
		f := newFixture(c, 42)
		f.writeSource(c, "custo00100.unl", input)
		_, err := f.processor.Run([]string{"customers"})
		c.Assert(err, quicktest.IsNil)
		out, err := os.ReadFile(filepath.Join(f.target, "custo00100.unl"))
		c.Assert(err, quicktest.IsNil)
		return string(out)
	}
	c.Assert(run(), quicktest.Equals, run())
}

func TestSelectTables(t *testing.T) {
	c := quicktest.New(t)
	tables := SelectTables(testCatalog(), []string{"training_config", "not_a_table"})
	c.Assert(tables, quicktest.DeepEquals, []string{"customers", "orders"})
}
