package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/remidefleurian/ochim/internal/fileutil"
)

// WriteCSV marshals rows (a slice of csv-tagged structs) to path. The file is
// written to a temporary sibling and renamed into place.
func WriteCSV(path string, rows any) error {
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return gocsv.Marshal(rows, w)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadCSV unmarshals the file at path into out, a pointer to a slice of
// csv-tagged structs.
func ReadCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// ReadDir reads and concatenates every file in dir matching pattern, in
// lexical file name order. The matched paths are returned alongside.
func ReadDir[T any](dir, pattern string) ([]T, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(paths)

	var all []T
	for _, path := range paths {
		var rows []T
		if err := ReadCSV(path, &rows); err != nil {
			return nil, paths, err
		}
		all = append(all, rows...)
	}
	return all, paths, nil
}
