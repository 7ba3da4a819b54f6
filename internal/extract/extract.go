// Package extract pulls readable article text out of web pages so the
// composer has more to work with than a feed's one-line description.
package extract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	neturl "net/url"
	"regexp"
	"strings"
	"time"

	trafilatura "github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

type Extractor struct {
	client *http.Client
}

func New(timeoutSec int) *Extractor {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	return &Extractor{client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}}
}

// MainText fetches a page and extracts its main content as plain text.
// Returns "" on any failure; callers fall back to the feed-provided fields.
func (e *Extractor) MainText(ctx context.Context, url string) string {
	if strings.TrimSpace(url) == "" {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "x-feed/1.0")
	resp, err := e.client.Do(req)
	if err != nil || resp == nil || resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return ""
	}
	res, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL:    func() *neturl.URL { u, _ := neturl.Parse(url); return u }(),
		EnableFallback: true,
		Focus:          trafilatura.Balanced,
	})
	if err == nil && res != nil {
		// Very short outputs are usually boilerplate, not the article.
		if txt := strings.TrimSpace(res.ContentText); len(txt) > 100 {
			return txt
		}
	}
	return ""
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// StripHTML converts a small HTML fragment into plain text by walking the
// node tree and concatenating text nodes with minimal whitespace
// normalization.
func StripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	n, err := html.Parse(strings.NewReader(s))
	if err != nil || n == nil {
		out := tagRe.ReplaceAllString(s, " ")
		return strings.Join(strings.Fields(out), " ")
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
