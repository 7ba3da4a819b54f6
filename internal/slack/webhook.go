// Package slack posts articles to a Slack incoming webhook using Block Kit.
package slack

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anthonyrussano/x-feed/internal/httpclient"
	"github.com/anthonyrussano/x-feed/internal/poster"
)

const (
	botName = "RSS Feed Bot"
	botIcon = ":newspaper:"
)

type Webhook struct {
	url    string
	client *httpclient.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, client: httpclient.New(timeout)}
}

func (w *Webhook) Name() string { return "slack" }

type textObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type block struct {
	Type     string      `json:"type"`
	Text     *textObject `json:"text,omitempty"`
	Elements []any       `json:"elements,omitempty"`
}

type buttonElement struct {
	Type string     `json:"type"`
	Text textObject `json:"text"`
	URL  string     `json:"url"`
}

type payload struct {
	Username  string  `json:"username"`
	IconEmoji string  `json:"icon_emoji"`
	Blocks    []block `json:"blocks"`
}

// Post sends the article as a section, a context line and a Read More button,
// the layout the original Slack bot used.
func (w *Webhook) Post(ctx context.Context, m poster.Message) error {
	body := m.Summary
	if body == "" {
		body = m.Link
	}
	blocks := []block{
		{
			Type: "section",
			Text: &textObject{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n\n%s", m.Title, body)},
		},
	}
	if m.Author != "" || !m.Published.IsZero() {
		line := "By " + orUnknown(m.Author)
		if !m.Published.IsZero() {
			line += " • " + m.Published.Format(time.RFC1123)
		}
		blocks = append(blocks, block{
			Type:     "context",
			Elements: []any{textObject{Type: "mrkdwn", Text: line}},
		})
	}
	if m.Link != "" {
		blocks = append(blocks, block{
			Type: "actions",
			Elements: []any{buttonElement{
				Type: "button",
				Text: textObject{Type: "plain_text", Text: "Read More", Emoji: true},
				URL:  m.Link,
			}},
		})
	}

	resp, err := w.client.PostJSON(ctx, w.url, payload{Username: botName, IconEmoji: botIcon, Blocks: blocks}, nil)
	if err != nil {
		return &poster.Error{Target: w.Name(), StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &poster.Error{Target: w.Name(), StatusCode: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown Author"
	}
	return s
}
