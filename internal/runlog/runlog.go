// Package runlog owns the bot's observable output: the structured log file
// and the per-run records the external CI job commits back to the repo.
package runlog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	logFileName  = "feed_bot.log"
	runsFileName = "runs.jsonl"
)

// Setup configures a logger writing to both stderr and <dir>/feed_bot.log,
// mirroring the dual handlers the original bot set up. The returned closer
// releases the log file.
func Setup(dir string) (*log.Logger, func() error, error) {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stderr)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return logger, f.Close, nil
}

// Record summarizes one run. Appended as a single JSON line, never
// rewriting earlier runs.
type Record struct {
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Target            string    `json:"target"`
	Posted            []string  `json:"posted"`
	FetchErrors       []string  `json:"fetch_errors,omitempty"`
	PostErrors        []string  `json:"post_errors,omitempty"`
	Candidates        int       `json:"candidates"`
	SkippedDuplicates int       `json:"skipped_duplicates"`
	Note              string    `json:"note,omitempty"`
}

// Append writes the record to <dir>/runs.jsonl.
func Append(dir string, rec Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, runsFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
