// Package compose turns a feed entry into a bounded-length social update,
// either through the xAI chat-completions API or a plain template.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/anthonyrussano/x-feed/internal/config"
)

// MaxMessageLen is the X post limit the composer clamps to.
const MaxMessageLen = 280

// Article is the material the composer works from.
type Article struct {
	Title   string
	Content string
	URL     string
}

const systemPrompt = "You are a social media expert who creates engaging tweets. " +
	"Your tweets should be informative yet conversational, and always include the article URL at the end."

const defaultPrompt = `Read this article and create an engaging tweet about it:

Title: {{.Title}}
Content: {{.Content}}
URL: {{.URL}}`

// Composer generates message text with an OpenAI-compatible endpoint. The
// default configuration points at the xAI API.
type Composer struct {
	client openai.Client
	model  string
	prompt *template.Template
}

// New builds a composer from the AI configuration and API key.
func New(ai config.AIConfig, apiKey string) (*Composer, error) {
	if ai.BaseURL == "" {
		ai.BaseURL = config.DefaultAIBaseURL
	}
	if ai.Model == "" {
		ai.Model = config.DefaultAIModel
	}
	raw := ai.Prompt
	if strings.TrimSpace(raw) == "" {
		raw = defaultPrompt
	}
	tmpl, err := template.New("prompt").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &Composer{
		client: openai.NewClient(
			option.WithBaseURL(ai.BaseURL),
			option.WithAPIKey(apiKey),
		),
		model:  ai.Model,
		prompt: tmpl,
	}, nil
}

// Generate asks the model for a post about the article. The result is
// clamped to the message limit with the article URL kept intact.
func (c *Composer) Generate(ctx context.Context, a Article) (string, error) {
	var buf bytes.Buffer
	if err := c.prompt.Execute(&buf, a); err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(timeoutCtx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buf.String()),
		},
		Model:       c.model,
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("AI returned empty content")
	}
	return Clamp(text, a.URL, MaxMessageLen), nil
}

// Plain renders the no-AI message used by the webhook targets and dry runs.
func Plain(a Article) string {
	return Clamp(a.Title+"\n\n"+a.URL, a.URL, MaxMessageLen)
}

// Clamp bounds text to limit runes. When the text ends with url, the prose
// is truncated with an ellipsis and the url survives untouched.
func Clamp(text, url string, limit int) string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if url != "" && strings.HasSuffix(trimmed, url) {
		head := strings.TrimSpace(strings.TrimSuffix(trimmed, url))
		budget := limit - utf8.RuneCountInString(url) - 2 // "… " separator
		if budget <= 0 {
			return url
		}
		r := []rune(head)
		if len(r) > budget {
			r = r[:budget]
		}
		return strings.TrimSpace(string(r)) + "… " + url
	}
	r := []rune(text)
	return string(r[:limit-1]) + "…"
}
