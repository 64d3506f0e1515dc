package export

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andys/unlscrub/db"
)

const dataFileExt = ".unl"

// CopyTree recreates target from scratch and copies every file under source
// into it, keeping the relative layout. Files for which skip returns true
// (given the path relative to source) are left out.
func CopyTree(source, target string, skip func(rel string) bool) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("failed to resolve source directory: %w", err)
	}
	dst, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve target directory: %w", err)
	}
	if src == dst || strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return fmt.Errorf("target directory %s must not be inside source directory %s", target, source)
	}
	if strings.HasPrefix(src, dst+string(filepath.Separator)) {
		return fmt.Errorf("source directory %s must not be inside target directory %s", source, target)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", source)
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear target directory: %w", err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() || (skip != nil && skip(rel)) {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", from, err)
	}
	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return out.Close()
}

// SkipDataFiles returns a skip function for CopyTree matching every data
// file named in the catalog, since included tables are written by the
// processor, plus any top-level .unl file whose name starts with an
// excluded table name.
func SkipDataFiles(catalog db.Catalog, excluded []string) func(rel string) bool {
	files := catalog.DataFileTables()
	return func(rel string) bool {
		if _, ok := files[filepath.ToSlash(rel)]; ok {
			return true
		}
		if filepath.Dir(rel) != "." || !strings.HasSuffix(rel, dataFileExt) {
			return false
		}
		stem := strings.TrimSuffix(rel, dataFileExt)
		for _, table := range excluded {
			if table != "" && strings.HasPrefix(stem, table) {
				return true
			}
		}
		return false
	}
}
