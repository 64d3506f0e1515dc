package worker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andys/unlscrub/unl"
)

const tmpSuffix = ".tmp"

// Writer produces one table's output data file. Records go to <path>.tmp,
// which replaces <path> only on Commit, so a failed attempt never leaves a
// truncated file under the final name.
type Writer struct {
	path string
	tmp  string
	file *os.File
	out  *unl.Writer
}

// NewWriter creates the temporary output file for path
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + tmpSuffix
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &Writer{
		path: path,
		tmp:  tmp,
		file: file,
		out:  unl.NewWriter(file),
	}, nil
}

// Write appends one encoded record
func (w *Writer) Write(rec *unl.Record) error {
	if err := w.out.Write(rec); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	return nil
}

// Lines is the number of records written so far
func (w *Writer) Lines() int64 {
	return w.out.Lines()
}

// Commit flushes and closes the temporary file and renames it into place.
func (w *Writer) Commit() error {
	if err := w.out.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("failed to rename %s: %w", w.tmp, err)
	}
	return nil
}

// Abort discards the temporary file
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.tmp)
}
