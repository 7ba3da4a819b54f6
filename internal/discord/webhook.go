// Package discord posts articles to a Discord channel webhook as embeds.
package discord

import (
	"context"
	"io"
	"time"

	"github.com/anthonyrussano/x-feed/internal/httpclient"
	"github.com/anthonyrussano/x-feed/internal/poster"
)

// Discord blurple, the color the original bot used for its embeds.
const embedColor = 0x7289DA

const (
	maxTitleLen       = 256
	maxDescriptionLen = 2048
)

type Webhook struct {
	url    string
	client *httpclient.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, client: httpclient.New(timeout)}
}

func (w *Webhook) Name() string { return "discord" }

type embedAuthor struct {
	Name string `json:"name,omitempty"`
}

type embedFooter struct {
	Text string `json:"text,omitempty"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Color       int         `json:"color"`
	Author      embedAuthor `json:"author,omitempty"`
	Footer      embedFooter `json:"footer,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

// Post sends the article as a single embed.
func (w *Webhook) Post(ctx context.Context, m poster.Message) error {
	e := embed{
		Title:       truncate(m.Title, maxTitleLen),
		Description: truncate(m.Summary, maxDescriptionLen),
		URL:         m.Link,
		Color:       embedColor,
		Author:      embedAuthor{Name: m.Author},
	}
	if !m.Published.IsZero() {
		e.Footer = embedFooter{Text: "Published: " + m.Published.Format(time.RFC1123)}
		e.Timestamp = m.Published.UTC().Format(time.RFC3339)
	}

	resp, err := w.client.PostJSON(ctx, w.url, payload{Embeds: []embed{e}}, nil)
	if err != nil {
		return &poster.Error{Target: w.Name(), StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &poster.Error{Target: w.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
