// Package fetch retrieves RSS/Atom feeds and flattens them into entries.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is one syndicated item, immutable once fetched.
type Entry struct {
	// ID is the guid when the feed provides one, otherwise the link.
	ID          string
	SourceURL   string
	Title       string
	Link        string
	Author      string
	Description string
	Content     string
	Published   time.Time
}

// FetchError marks a per-feed failure. The caller logs it and moves on to
// the remaining feeds.
type FetchError struct {
	Feed string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching feed %s: %v", e.Feed, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher parses feeds with a bounded-timeout HTTP client.
type Fetcher struct {
	parser *gofeed.Parser
}

const userAgent = "x-feed/1.0 (+https://github.com/anthonyrussano/x-feed)"

// New constructs a fetcher. timeoutSec bounds each feed request so a stalled
// server cannot hang the scheduled run.
func New(timeoutSec int) *Fetcher {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
	p.UserAgent = userAgent
	return &Fetcher{parser: p}
}

// Fetch retrieves and parses a single feed. Network failures, non-2xx
// statuses, malformed XML and empty feeds all come back as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &FetchError{Feed: feedURL, Err: err}
	}
	if len(feed.Items) == 0 {
		return nil, &FetchError{Feed: feedURL, Err: fmt.Errorf("no entries found")}
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		id := firstNonEmpty(it.GUID, it.Link)
		if id == "" {
			continue
		}
		e := Entry{
			ID:          id,
			SourceURL:   feedURL,
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: it.Description,
			Content:     it.Content,
		}
		if it.Author != nil {
			e.Author = strings.TrimSpace(it.Author.Name)
		}
		if it.PublishedParsed != nil {
			e.Published = it.PublishedParsed.UTC()
		} else if it.UpdatedParsed != nil {
			e.Published = it.UpdatedParsed.UTC()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
