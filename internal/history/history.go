// Package history persists the identifiers of already-posted entries so a
// scheduled run never posts the same article twice.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthonyrussano/x-feed/internal/config"
)

// Record is one posted article. The JSON shape matches the history file the
// original bot wrote, so a committed logs/posted_articles.json keeps working.
type Record struct {
	URL  string `json:"url"`
	Date Time   `json:"date"`
}

// Time marshals as RFC 3339 but also reads the naive ISO timestamps
// (no zone suffix) found in pre-existing history files.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized history timestamp %q", s)
}

// Store is the dedup record. Implementations are append-only; nothing is
// ever evicted. A single run is the only writer, so implementations need no
// internal locking (concurrent manual invocations are unsafe).
type Store interface {
	// Contains reports whether the identifier was posted before.
	Contains(id string) bool
	// Add marks an identifier as posted. Callers must only do this after
	// a successful post, so failed entries are retried next run.
	Add(id string, postedAt time.Time)
	// All returns every record, oldest first.
	All() []Record
	// Flush persists pending additions.
	Flush() error
	// Close flushes and releases the backend.
	Close() error
}

// Open picks the backend from configuration.
func Open(ac config.AppConfig) (Store, error) {
	path := config.ExpandPath(ac.HistoryPath)
	switch ac.HistoryBackend {
	case "sqlite":
		return OpenSQLite(path)
	case "file", "":
		return OpenFile(path)
	}
	return nil, fmt.Errorf("unknown history backend %q", ac.HistoryBackend)
}
