package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

const recordExt = ".json"

// ArtifactStore persists one record per artifact name.
//
// Read returns found=false for a missing record. A record that exists but
// cannot be read or decoded also returns found=false, together with the
// error (a *FormatError for bad JSON). Write replaces the whole record.
type ArtifactStore[T any] interface {
	Read(name string) (rec T, found bool, err error)
	Write(name string, rec T) error
	List() ([]T, error)
}

// jsonStore stores each record as <dir>/<name>.json.
type jsonStore[T any] struct {
	dir string
}

func newJSONStore[T any](dir string) *jsonStore[T] {
	return &jsonStore[T]{dir: dir}
}

func (s *jsonStore[T]) path(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

func (s *jsonStore[T]) Read(name string) (T, bool, error) {
	var rec T
	if err := checkName(name); err != nil {
		return rec, false, err
	}
	found, err := readJSON(s.path(name), &rec)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return rec, true, nil
}

func (s *jsonStore[T]) Write(name string, rec T) error {
	if err := checkName(name); err != nil {
		return err
	}
	return writeJSON(s.path(name), rec)
}

// List returns every decodable record in name order. Unreadable files are skipped.
func (s *jsonStore[T]) List() ([]T, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), recordExt))
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		rec, found, _ := s.Read(name)
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// readJSON decodes a JSONC file into v. A missing file returns found=false
// with no error.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
		return false, &FormatError{Path: path, Err: err}
	}
	return true, nil
}

// writeJSON writes v atomically: the record is written to a temp file in the
// same directory and renamed over the destination.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// checkName rejects names that would escape the store directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
