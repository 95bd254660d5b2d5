// Package jsonfile keeps the authorized plate set in a small JSON document
// of the form {"plates": [...]}.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type document struct {
	Plates []string `json:"plates"`
}

// PlateRepository re-reads the file on every call and rewrites it on every
// mutation. Writes go to a temp file in the same directory and are renamed
// into place.
type PlateRepository struct {
	path string
	mu   sync.Mutex
}

// NewPlateRepository returns a repository backed by path, creating an empty
// document if the file does not exist yet.
func NewPlateRepository(path string) (*PlateRepository, error) {
	r := &PlateRepository{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return r, nil
}

// Path returns the backing file.
func (r *PlateRepository) Path() string {
	return r.path
}

func (r *PlateRepository) All() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plates, err := r.read()
	if err != nil {
		return nil, err
	}
	sort.Strings(plates)
	return plates, nil
}

func (r *PlateRepository) Exists(plate string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plates, err := r.read()
	if err != nil {
		return false, err
	}
	for _, p := range plates {
		if p == plate {
			return true, nil
		}
	}
	return false, nil
}

func (r *PlateRepository) Insert(plate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plates, err := r.read()
	if err != nil {
		return err
	}
	return r.write(append(plates, plate))
}

func (r *PlateRepository) Delete(plate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plates, err := r.read()
	if err != nil {
		return err
	}

	kept := plates[:0]
	for _, p := range plates {
		if p != plate {
			kept = append(kept, p)
		}
	}
	return r.write(kept)
}

// read returns the stored plates; duplicates in a hand-edited file are
// collapsed on the next write.
func (r *PlateRepository) read() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
	}
	if doc.Plates == nil {
		doc.Plates = []string{}
	}
	return doc.Plates, nil
}

func (r *PlateRepository) write(plates []string) error {
	set := make(map[string]struct{}, len(plates))
	unique := make([]string, 0, len(plates))
	for _, p := range plates {
		if _, ok := set[p]; ok {
			continue
		}
		set[p] = struct{}{}
		unique = append(unique, p)
	}
	sort.Strings(unique)

	data, err := json.MarshalIndent(document{Plates: unique}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plates: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".authorized-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}
