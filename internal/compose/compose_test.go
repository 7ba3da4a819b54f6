package compose

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonyrussano/x-feed/internal/config"
)

func TestClamp(t *testing.T) {
	url := "https://example.com/article"

	t.Run("ShortTextUntouched", func(t *testing.T) {
		text := "A short post. " + url
		assert.Equal(t, text, Clamp(text, url, 280))
	})

	t.Run("TruncatesProseKeepsURL", func(t *testing.T) {
		text := strings.Repeat("word ", 100) + url
		got := Clamp(text, url, 280)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), 280)
		assert.True(t, strings.HasSuffix(got, url), "url must survive clamping: %q", got)
		assert.Contains(t, got, "…")
	})

	t.Run("NoURL", func(t *testing.T) {
		text := strings.Repeat("x", 400)
		got := Clamp(text, "", 280)
		assert.Equal(t, 280, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "…"))
	})

	t.Run("URLLongerThanLimit", func(t *testing.T) {
		long := "https://example.com/" + strings.Repeat("a", 300)
		got := Clamp("title "+long, long, 280)
		assert.Equal(t, long, got)
	})
}

func TestPlain(t *testing.T) {
	a := Article{Title: "A headline", URL: "https://example.com/a"}
	got := Plain(a)
	assert.Equal(t, "A headline\n\nhttps://example.com/a", got)
}

func TestGenerate(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  An engaging post! https://example.com/a  "}
			}]
		}`)
	}))
	defer server.Close()

	c, err := New(config.AIConfig{BaseURL: server.URL, Model: "grok-beta"}, "test-key")
	require.NoError(t, err)

	got, err := c.Generate(t.Context(), Article{
		Title:   "A headline",
		Content: "Body text",
		URL:     "https://example.com/a",
	})
	require.NoError(t, err)
	assert.Equal(t, "An engaging post! https://example.com/a", got)

	assert.Equal(t, "grok-beta", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[1].Content, "A headline")
	assert.Contains(t, gotReq.Messages[1].Content, "https://example.com/a")
}

func TestGenerateEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cmpl-2", "object": "chat.completion", "choices": []}`)
	}))
	defer server.Close()

	c, err := New(config.AIConfig{BaseURL: server.URL, Model: "grok-beta"}, "test-key")
	require.NoError(t, err)

	_, err = c.Generate(t.Context(), Article{Title: "x", URL: "https://example.com"})
	assert.Error(t, err)
}

func TestCustomPromptTemplate(t *testing.T) {
	_, err := New(config.AIConfig{Prompt: "{{.Broken"}, "key")
	assert.Error(t, err)
}
