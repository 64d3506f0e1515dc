package export

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/andys/unlscrub/db"
	"github.com/andys/unlscrub/unl"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"
	"go.uber.org/multierr"
)

const (
	AlgorithmMD5  = "md5sum"
	AlgorithmXXH3 = "xxh3"
)

// RowCounter reports the number of rows loaded into a table
type RowCounter interface {
	CountRows(table string) (int64, error)
}

// VerifyOptions selects the checks run after a successful export.
type VerifyOptions struct {
	SourceDir string
	TargetDir string

	Checksums bool
	Algorithm string

	// RecordCounts compares Counter's row counts for SampleTables (all
	// tables when empty) with the output line counts. Skipped when
	// Counter is nil.
	RecordCounts bool
	SampleTables []string
	Counter      RowCounter
}

// TableCheck is the verification result for one table
type TableCheck struct {
	Table       string
	DataFile    string
	SourceLines int64
	TargetLines int64
	Checksum    string
	DBRows      int64
	DBChecked   bool
}

// Verify checks every processed table and returns the per-table results.
// All mismatches are reported together in the returned error.
func Verify(catalog db.Catalog, tables []string, opts VerifyOptions) ([]TableCheck, error) {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	var errs error
	checks := make([]TableCheck, 0, len(sorted))
	for _, table := range sorted {
		schema, ok := catalog.Lookup(table)
		if !ok {
			continue
		}
		check := TableCheck{Table: table, DataFile: schema.DataFile}

		var err error
		check.SourceLines, err = countFileLines(filepath.Join(opts.SourceDir, schema.DataFile))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		check.TargetLines, err = countFileLines(filepath.Join(opts.TargetDir, schema.DataFile))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if check.SourceLines != check.TargetLines {
			errs = multierr.Append(errs, fmt.Errorf("table %s: line count mismatch: source %d, target %d",
				table, check.SourceLines, check.TargetLines))
		}

		if opts.Checksums {
			check.Checksum, err = fileChecksum(filepath.Join(opts.TargetDir, schema.DataFile), opts.Algorithm)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}

		if opts.RecordCounts && opts.Counter != nil &&
			(len(opts.SampleTables) == 0 || lo.Contains(opts.SampleTables, table)) {
			check.DBRows, err = opts.Counter.CountRows(table)
			if err != nil {
				errs = multierr.Append(errs, err)
			} else {
				check.DBChecked = true
				if check.DBRows != check.TargetLines {
					errs = multierr.Append(errs, fmt.Errorf("table %s: record count mismatch: database %d, file %d",
						table, check.DBRows, check.TargetLines))
				}
			}
		}

		checks = append(checks, check)
	}

	if opts.Checksums {
		if err := writeChecksums(opts.TargetDir, opts.Algorithm, checks); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return checks, errs
}

func countFileLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	n, err := unl.CountLines(f)
	if err != nil {
		return 0, fmt.Errorf("failed to count lines in %s: %w", path, err)
	}
	return n, nil
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmMD5, "":
		return md5.New(), nil
	case AlgorithmXXH3:
		return xxh3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

func fileChecksum(path, algorithm string) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumFileName is the checksum listing written into the target directory
func ChecksumFileName(algorithm string) string {
	if algorithm == "" {
		algorithm = AlgorithmMD5
	}
	return "checksums." + algorithm
}

// writeChecksums writes "<sum>  <file>" lines, the format md5sum -c reads.
func writeChecksums(dir, algorithm string, checks []TableCheck) error {
	var buf bytes.Buffer
	for _, check := range checks {
		if check.Checksum == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s  %s\n", check.Checksum, check.DataFile)
	}
	path := filepath.Join(dir, ChecksumFileName(algorithm))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write checksums: %w", err)
	}
	return nil
}
