// Package twitter posts updates to the X API v2 with OAuth 1.0a user context.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/anthonyrussano/x-feed/internal/config"
	"github.com/anthonyrussano/x-feed/internal/poster"
)

// Client is an X API client. The underlying http.Client signs every request
// with the configured OAuth 1.0a credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a signing client from the run credentials. Every API call
// is bounded by timeout so a stalled post cannot hang a scheduled run.
func NewClient(creds config.Credentials, timeout time.Duration) *Client {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	httpc := cfg.Client(oauth1.NoContext, token)
	httpc.Timeout = timeout
	return &Client{
		baseURL:    "https://api.twitter.com",
		httpClient: httpc,
	}
}

// SetBaseURL overrides the API host (used for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) Name() string { return "x" }

// Tweet is the created post as the API reports it.
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data Tweet `json:"data"`
}

// Post submits the message text as a tweet. The API returns 201 on success;
// anything else becomes a *poster.Error carrying the response body.
func (c *Client) Post(ctx context.Context, m poster.Message) error {
	_, err := c.CreateTweet(ctx, m.Text)
	return err
}

// CreateTweet posts text via POST /2/tweets and returns the created tweet.
func (c *Client) CreateTweet(ctx context.Context, text string) (*Tweet, error) {
	body, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16384))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, &poster.Error{Target: c.Name(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out tweetResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse tweet response: %w", err)
	}
	return &out.Data, nil
}
