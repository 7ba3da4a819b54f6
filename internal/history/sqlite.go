package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the database-backed history for setups where the flat file
// grows past what a committed JSON blob should hold.
type SQLiteStore struct {
	db   *sql.DB
	seen map[string]struct{}
	err  error // first persistence failure, reported by Flush
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS posted_articles (
        url TEXT PRIMARY KEY,
        posted_at TIMESTAMP NOT NULL
    )`); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, seen: make(map[string]struct{})}
	rows, err := db.Query(`SELECT url FROM posted_articles`)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			db.Close()
			return nil, err
		}
		s.seen[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *SQLiteStore) Add(id string, postedAt time.Time) {
	if s.Contains(id) {
		return
	}
	// Written through immediately; sqlite is already durable per statement.
	_, err := s.db.Exec(`INSERT INTO posted_articles (url, posted_at) VALUES (?, ?)
        ON CONFLICT(url) DO NOTHING`, id, postedAt.UTC().Format(time.RFC3339))
	if err != nil {
		s.recordErr(fmt.Errorf("recording %s: %w", id, err))
		return
	}
	s.seen[id] = struct{}{}
}

func (s *SQLiteStore) All() []Record {
	rows, err := s.db.Query(`SELECT url, posted_at FROM posted_articles ORDER BY posted_at ASC`)
	if err != nil {
		s.recordErr(err)
		return nil
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var u, ts string
		if err := rows.Scan(&u, &ts); err != nil {
			s.recordErr(err)
			return out
		}
		r := Record{URL: u}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			r.Date = Time{parsed}
		}
		out = append(out, r)
	}
	return out
}

func (s *SQLiteStore) recordErr(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Flush reports the first persistence failure since opening; writes
// themselves happen in Add.
func (s *SQLiteStore) Flush() error { return s.err }

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.recordErr(err)
	}
	return s.err
}
