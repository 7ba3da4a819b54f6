// Package feedlist reads the newline-delimited feed list the bot works from.
package feedlist

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/samber/lo"
)

// Feed is one line of rss_feeds.txt: a URL plus an optional free-form note.
type Feed struct {
	URL  string
	Note string
}

// Load parses a feed list file. Blank lines and lines starting with # are
// skipped. A note may follow the URL after a "!" separator or the first
// whitespace run, e.g.:
//
//	https://example.com/rss ! tech blog
//	https://example.org/feed.xml daily news
func Load(path string) ([]Feed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feed list: %w", err)
	}
	lines := strings.Split(string(b), "\n")
	feeds := lo.FilterMap(lines, func(line string, _ int) (Feed, bool) {
		return parseLine(line)
	})
	if len(feeds) == 0 {
		return nil, fmt.Errorf("feed list %s has no usable entries", path)
	}
	return feeds, nil
}

func parseLine(line string) (Feed, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Feed{}, false
	}
	url := line
	note := ""
	if i := strings.Index(line, "!"); i >= 0 {
		url = line[:i]
		note = line[i+1:]
	}
	// The URL is the first whitespace-delimited token; anything after it
	// on the same line is treated as a note as well.
	fields := strings.Fields(url)
	if len(fields) == 0 {
		return Feed{}, false
	}
	url = fields[0]
	if note == "" && len(fields) > 1 {
		note = strings.Join(fields[1:], " ")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Feed{}, false
	}
	return Feed{URL: url, Note: strings.TrimSpace(note)}, true
}

// Pick returns one feed at random, the way the original single-post mode
// chose its source.
func Pick(feeds []Feed) Feed {
	return feeds[rand.Intn(len(feeds))]
}
