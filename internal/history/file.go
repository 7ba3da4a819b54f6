package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps the history in a JSON array on disk, the format the
// external CI job commits back to the repository.
type FileStore struct {
	path    string
	records []Record
	seen    map[string]struct{}
	dirty   bool
}

// OpenFile loads the history file, treating a missing file as an empty
// history (first run).
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, seen: make(map[string]struct{})}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading history %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s.records); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	for _, r := range s.records {
		s.seen[r.URL] = struct{}{}
	}
	return s, nil
}

func (s *FileStore) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *FileStore) Add(id string, postedAt time.Time) {
	if s.Contains(id) {
		return
	}
	s.records = append(s.records, Record{URL: id, Date: Time{postedAt}})
	s.seen[id] = struct{}{}
	s.dirty = true
}

func (s *FileStore) All() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Flush writes the whole array atomically (temp file + rename) so an
// interrupted run cannot leave a truncated history behind.
func (s *FileStore) Flush() error {
	if !s.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".posted-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	s.dirty = false
	return nil
}

func (s *FileStore) Close() error {
	return s.Flush()
}
