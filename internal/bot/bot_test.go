package bot

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonyrussano/x-feed/internal/config"
)

const feedAXML = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<rss version="2.0">
	<channel>
		<title>Feed A</title>
		<link>https://a.example</link>
		<description>Feed A</description>
		<item>
			<title>Article one</title>
			<link>https://a.example/articles/1</link>
			<pubDate>Mon, 25 Aug 2025 07:42:16 +0100</pubDate>
			<guid>https://a.example/post/1</guid>
			<description>First summary</description>
		</item>
		<item>
			<title>Article two</title>
			<link>https://a.example/articles/2</link>
			<pubDate>Tue, 26 Aug 2025 07:42:16 +0100</pubDate>
			<guid>https://a.example/post/2</guid>
			<description>Second summary</description>
		</item>
	</channel>
</rss>`

// fixture bundles an RSS origin, a webhook sink and a ready config.
type fixture struct {
	cfg          config.AppConfig
	feedHits     atomic.Int64
	webhookHits  atomic.Int64
	webhookFails bool
}

func newFixture(t *testing.T, feedPaths ...string) *fixture {
	t.Helper()
	fx := &fixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fx.feedHits.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, feedAXML)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fx.feedHits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	rss := httptest.NewServer(mux)
	t.Cleanup(rss.Close)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fx.webhookHits.Add(1)
		if fx.webhookFails {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(webhook.Close)

	dir := t.TempDir()
	var list string
	for _, p := range feedPaths {
		list += rss.URL + p + "\n"
	}
	feedsFile := filepath.Join(dir, "rss_feeds.txt")
	require.NoError(t, os.WriteFile(feedsFile, []byte(list), 0o644))

	fx.cfg = config.AppConfig{
		FeedsPath:      feedsFile,
		HistoryBackend: "file",
		HistoryPath:    filepath.Join(dir, "logs", "posted_articles.json"),
		LogDir:         filepath.Join(dir, "logs"),
		FetchTimeout:   5,
		MaxPosts:       10,
		Target:         config.TargetSlack,
		Creds:          config.Credentials{SlackWebhookURL: webhook.URL},
	}
	return fx
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunPostsNewEntriesAndSkipsFailingFeed(t *testing.T) {
	fx := newFixture(t, "/a", "/b")

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example/post/1", "https://a.example/post/2"}, rec.Posted)
	assert.Len(t, rec.FetchErrors, 1)
	assert.Equal(t, 2, rec.Candidates)
	assert.Equal(t, int64(2), fx.webhookHits.Load())

	// dedup store grew by the successful posts only
	assert.True(t, b.Store().Contains("https://a.example/post/1"))
	assert.True(t, b.Store().Contains("https://a.example/post/2"))
}

func TestRerunWithUnchangedFeedsPostsNothing(t *testing.T) {
	fx := newFixture(t, "/a")

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	_, err = b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)
	require.NoError(t, b.Store().Close())
	require.Equal(t, int64(1), fx.webhookHits.Load())

	// fresh bot, same history file
	b2, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b2.Store().Close()

	rec, err := b2.RunOnce(t.Context(), Options{})
	require.NoError(t, err)

	assert.Empty(t, rec.Posted)
	assert.Equal(t, 0, rec.Candidates)
	assert.Equal(t, 2, rec.SkippedDuplicates)
	assert.Equal(t, "no new entries", rec.Note)
	assert.Equal(t, int64(1), fx.webhookHits.Load(), "no further webhook calls")
}

func TestLinkKeyedHistoryIsNotReposted(t *testing.T) {
	fx := newFixture(t, "/a")

	// Histories from earlier bot versions record the article link, not the
	// guid. Article one is already posted under its link.
	legacy := `[{"url": "https://a.example/articles/1", "date": "2025-08-25T10:00:00.123456"}]`
	require.NoError(t, os.MkdirAll(filepath.Dir(fx.cfg.HistoryPath), 0o755))
	require.NoError(t, os.WriteFile(fx.cfg.HistoryPath, []byte(legacy), 0o644))

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example/post/2"}, rec.Posted)
	assert.Equal(t, 1, rec.SkippedDuplicates)
	assert.Equal(t, int64(1), fx.webhookHits.Load())
}

func TestFailedPostIsRetriedNextRun(t *testing.T) {
	fx := newFixture(t, "/a")
	fx.cfg.MaxPosts = 1
	fx.webhookFails = true

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)

	assert.Empty(t, rec.Posted)
	assert.NotEmpty(t, rec.PostErrors)
	assert.False(t, b.Store().Contains("https://a.example/post/1"),
		"failed post must stay out of the dedup store")

	// service recovers, the same entry goes out
	fx.webhookFails = false
	rec, err = b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/post/1"}, rec.Posted)
}

func TestAllFeedsFailing(t *testing.T) {
	fx := newFixture(t, "/b")

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	_, err = b.RunOnce(t.Context(), Options{})
	assert.Error(t, err)
}

func TestMaxPostsCap(t *testing.T) {
	fx := newFixture(t, "/a")
	fx.cfg.MaxPosts = 1

	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{})
	require.NoError(t, err)

	assert.Len(t, rec.Posted, 1)
	assert.Equal(t, 2, rec.Candidates)
	assert.Equal(t, int64(1), fx.webhookHits.Load())
}

func TestDryRunPostsNothing(t *testing.T) {
	fx := newFixture(t, "/a")

	b, err := New(fx.cfg, quietLogger(), true)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, rec.Posted)
	assert.Equal(t, int64(0), fx.webhookHits.Load())
	assert.False(t, b.Store().Contains("https://a.example/post/1"))
}

func TestRunFailsFastOnMissingCredentials(t *testing.T) {
	fx := newFixture(t, "/a")
	fx.cfg.Target = config.TargetX
	fx.cfg.Creds = config.Credentials{} // nothing set

	loader := func() (config.AppConfig, error) { return fx.cfg, nil }
	err := Run(t.Context(), Options{}, loader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAUTH_CONSUMER_KEY")

	assert.Equal(t, int64(0), fx.feedHits.Load(), "no network calls before credential validation")
	assert.Equal(t, int64(0), fx.webhookHits.Load())
}

func TestRandomFeedModePostsAtMostOne(t *testing.T) {
	fx := newFixture(t, "/a")
	b, err := New(fx.cfg, quietLogger(), false)
	require.NoError(t, err)
	defer b.Store().Close()

	rec, err := b.RunOnce(t.Context(), Options{RandomFeed: true})
	require.NoError(t, err)
	assert.Len(t, rec.Posted, 1)
}
