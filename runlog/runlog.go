package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampLayout = "2006-01-02 15:04:05"

// lineFormatter writes one line per entry:
//
//	[2024-03-23 12:16:42 +3s] INFO Copied source directory to target
type lineFormatter struct {
	start time.Time
}

func (f *lineFormatter) Format(entry *log.Entry) ([]byte, error) {
	elapsed := int64(entry.Time.Sub(f.start).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	level := strings.ToUpper(entry.Level.String())
	if entry.Level == log.WarnLevel {
		level = "WARN"
	}
	msg := fmt.Sprintf("[%s +%ds] %s %s\n",
		entry.Time.Format(timestampLayout), elapsed, level, entry.Message)
	return []byte(msg), nil
}

// Sink is the run log shared by every table worker. Writes are serialized,
// so each caller's lines appear in the order it wrote them.
type Sink struct {
	mu     sync.Mutex
	logger *log.Logger
	closer io.Closer
	path   string
	runID  string
}

// Open creates <dir>/<prefix>export_<timestamp>.log, writes the header
// line and returns the sink. When echo is non-nil every line is copied to it.
func Open(dir, prefix string, echo io.Writer) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	start := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("%sexport_%s.log", prefix, start.Format("20060102_150405")))

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    200, // megabytes
		MaxBackups: 10,
	}
	var out io.Writer = rotator
	if echo != nil {
		out = io.MultiWriter(rotator, echo)
	}

	s := newSink(out, start)
	s.closer = rotator
	s.path = path
	if err := s.header(out, start); err != nil {
		rotator.Close()
		return nil, err
	}
	return s, nil
}

// New returns a sink writing to out without a header or a backing file.
func New(out io.Writer) *Sink {
	return newSink(out, time.Now())
}

func newSink(out io.Writer, start time.Time) *Sink {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&lineFormatter{start: start})
	logger.SetLevel(log.InfoLevel)
	return &Sink{logger: logger, runID: uuid.NewString()}
}

func (s *Sink) header(out io.Writer, start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(out, "=== Log started at %s (run %s) ===\n", start.Format(timestampLayout), s.runID)
	if err != nil {
		return fmt.Errorf("failed to write log header: %w", err)
	}
	return nil
}

// SetDebug enables Debugf output
func (s *Sink) SetDebug(debug bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if debug {
		s.logger.SetLevel(log.DebugLevel)
	} else {
		s.logger.SetLevel(log.InfoLevel)
	}
}

// Path is the log file, empty for sinks made with New.
func (s *Sink) Path() string {
	return s.path
}

// RunID identifies this run in the header line.
func (s *Sink) RunID() string {
	return s.runID
}

// Log writes msg at info level.
func (s *Sink) Log(msg string) {
	s.entry(log.InfoLevel, msg)
}

// Logf formats an info line.
func (s *Sink) Logf(format string, args ...interface{}) {
	s.entry(log.InfoLevel, fmt.Sprintf(format, args...))
}

// Warnf formats a WARN line.
func (s *Sink) Warnf(format string, args ...interface{}) {
	s.entry(log.WarnLevel, fmt.Sprintf(format, args...))
}

// Errorf formats an ERROR line. It does not stop the run.
func (s *Sink) Errorf(format string, args ...interface{}) {
	s.entry(log.ErrorLevel, fmt.Sprintf(format, args...))
}

// Debugf formats a DEBUG line, dropped unless SetDebug(true).
func (s *Sink) Debugf(format string, args ...interface{}) {
	s.entry(log.DebugLevel, fmt.Sprintf(format, args...))
}

func (s *Sink) entry(level log.Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Log(level, msg)
}

// Close flushes and closes the log file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
