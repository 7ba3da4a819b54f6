// Package bot wires the feed list, fetcher, history store, composer and
// poster into a single scheduled pass.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/anthonyrussano/x-feed/internal/compose"
	"github.com/anthonyrussano/x-feed/internal/config"
	"github.com/anthonyrussano/x-feed/internal/discord"
	"github.com/anthonyrussano/x-feed/internal/extract"
	"github.com/anthonyrussano/x-feed/internal/feedlist"
	"github.com/anthonyrussano/x-feed/internal/fetch"
	"github.com/anthonyrussano/x-feed/internal/history"
	"github.com/anthonyrussano/x-feed/internal/poster"
	"github.com/anthonyrussano/x-feed/internal/runlog"
	"github.com/anthonyrussano/x-feed/internal/slack"
	"github.com/anthonyrussano/x-feed/internal/twitter"
)

// Options allow overriding config values from CLI flags.
type Options struct {
	FeedsPath   string
	HistoryPath string
	LogDir      string
	Target      string
	RandomFeed  bool
	DryRun      bool
	MaxPosts    int
}

// postTimeout bounds each posting call, webhook and X API alike.
const postTimeout = 30 * time.Second

// runTimeout caps the whole pass so a stalled feed or endpoint cannot wedge
// the CI job until its own timeout.
const runTimeout = 10 * time.Minute

// entryContentThreshold is the point below which the feed-provided text is
// considered too thin and the article page is fetched for more.
const entryContentThreshold = 200

// Run executes a single bot pass and exits. Scheduling is delegated to the
// external CI cron; re-running with unchanged feeds posts nothing.
func Run(ctx context.Context, opts Options, load config.Loader) error {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg, err := load()
	if err != nil {
		return err
	}
	applyOverrides(&cfg, opts)

	logger, closeLog, err := runlog.Setup(cfg.LogDir)
	if err != nil {
		return err
	}
	defer closeLog()

	// Fail fast on configuration before any network call.
	if !opts.DryRun {
		if err := cfg.Validate(); err != nil {
			logger.WithError(err).Error("configuration error")
			return err
		}
	}

	b, err := New(cfg, logger, opts.DryRun)
	if err != nil {
		logger.WithError(err).Error("startup error")
		return err
	}
	defer b.store.Close()

	rec, runErr := b.RunOnce(ctx, opts)
	rec.FinishedAt = time.Now().UTC()
	if runErr != nil {
		rec.Note = runErr.Error()
	}
	if err := runlog.Append(cfg.LogDir, rec); err != nil {
		logger.WithError(err).Error("appending run record")
	}
	if err := b.store.Flush(); err != nil {
		logger.WithError(err).Error("flushing history")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func applyOverrides(cfg *config.AppConfig, opts Options) {
	if v := strings.TrimSpace(opts.FeedsPath); v != "" {
		cfg.FeedsPath = v
	}
	if v := strings.TrimSpace(opts.HistoryPath); v != "" {
		cfg.HistoryPath = v
	}
	if v := strings.TrimSpace(opts.LogDir); v != "" {
		cfg.LogDir = v
	}
	if v := strings.TrimSpace(opts.Target); v != "" {
		cfg.Target = config.Target(v)
	}
	if opts.MaxPosts > 0 {
		cfg.MaxPosts = opts.MaxPosts
	}
}

// Bot holds the collaborators for one run.
type Bot struct {
	cfg       config.AppConfig
	logger    *log.Logger
	store     history.Store
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	composer  *compose.Composer
	poster    poster.Poster
	dryRun    bool
}

// New builds a bot from configuration. The poster follows the target; the
// AI composer is only constructed for the X target, webhook targets use the
// plain template (their originals depended on a localhost model server).
func New(cfg config.AppConfig, logger *log.Logger, dryRun bool) (*Bot, error) {
	store, err := history.Open(cfg)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		fetcher:   fetch.New(cfg.FetchTimeout),
		extractor: extract.New(cfg.FetchTimeout),
		dryRun:    dryRun,
	}

	if dryRun {
		return b, nil
	}

	switch cfg.Target {
	case config.TargetX:
		b.poster = twitter.NewClient(cfg.Creds, postTimeout)
		c, err := compose.New(cfg.AIConf, cfg.Creds.XAIAPIKey)
		if err != nil {
			store.Close()
			return nil, err
		}
		b.composer = c
	case config.TargetDiscord:
		b.poster = discord.NewWebhook(cfg.Creds.DiscordWebhookURL, postTimeout)
	case config.TargetSlack:
		b.poster = slack.NewWebhook(cfg.Creds.SlackWebhookURL, postTimeout)
	default:
		store.Close()
		return nil, fmt.Errorf("unknown target %q", cfg.Target)
	}
	return b, nil
}

// SetPoster swaps the posting client (tests point it at a fixture server).
func (b *Bot) SetPoster(p poster.Poster) { b.poster = p }

// Store exposes the history store for inspection after a run.
func (b *Bot) Store() history.Store { return b.store }

// RunOnce performs the pass: fetch every feed, filter seen entries, post the
// survivors and record the outcome. A failing feed is logged and skipped; a
// failed post leaves its entry unmarked so the next run retries it.
func (b *Bot) RunOnce(ctx context.Context, opts Options) (runlog.Record, error) {
	rec := runlog.Record{
		StartedAt: time.Now().UTC(),
		Target:    string(b.cfg.Target),
		Posted:    []string{},
	}

	feeds, err := feedlist.Load(config.ExpandPath(b.cfg.FeedsPath))
	if err != nil {
		return rec, err
	}
	maxPosts := b.cfg.MaxPosts
	if opts.RandomFeed {
		picked := feedlist.Pick(feeds)
		b.logger.WithField("feed", picked.URL).Info("selected feed")
		feeds = []feedlist.Feed{picked}
		maxPosts = 1
	}

	var candidates []fetch.Entry
	for _, fd := range feeds {
		entries, err := b.fetcher.Fetch(ctx, fd.URL)
		if err != nil {
			b.logger.WithError(err).WithField("feed", fd.URL).Warn("feed fetch failed")
			rec.FetchErrors = append(rec.FetchErrors, err.Error())
			continue
		}
		fresh := lo.Filter(entries, func(e fetch.Entry, _ int) bool {
			return !b.seen(e)
		})
		rec.SkippedDuplicates += len(entries) - len(fresh)
		candidates = append(candidates, fresh...)
		b.logger.WithFields(log.Fields{
			"feed": fd.URL, "entries": len(entries), "new": len(fresh),
		}).Info("feed fetched")
	}
	rec.Candidates = len(candidates)

	if len(candidates) == 0 {
		if len(feeds) > 0 && len(rec.FetchErrors) == len(feeds) {
			return rec, fmt.Errorf("all %d feeds failed", len(feeds))
		}
		b.logger.Info("no new entries")
		rec.Note = "no new entries"
		return rec, nil
	}

	posted := 0
	for _, e := range candidates {
		if posted >= maxPosts {
			break
		}
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}

		msg, err := b.composeMessage(ctx, e)
		if err != nil {
			b.logger.WithError(err).WithField("entry", e.ID).Warn("compose failed")
			rec.PostErrors = append(rec.PostErrors, fmt.Sprintf("%s: %v", e.ID, err))
			continue
		}

		if b.dryRun {
			b.logger.WithFields(log.Fields{"entry": e.ID, "message": msg.Text}).Info("dry run, not posting")
			posted++
			continue
		}

		if err := b.poster.Post(ctx, msg); err != nil {
			b.logger.WithError(err).WithField("entry", e.ID).Warn("post failed, will retry next run")
			rec.PostErrors = append(rec.PostErrors, fmt.Sprintf("%s: %v", e.ID, err))
			continue
		}
		b.store.Add(e.ID, time.Now().UTC())
		rec.Posted = append(rec.Posted, e.ID)
		posted++
		b.logger.WithFields(log.Fields{"entry": e.ID, "title": e.Title}).Info("posted")
	}
	return rec, nil
}

// seen reports whether an entry was posted before. Histories written by
// earlier bot versions key entries on the article link rather than the guid,
// so both identifiers are checked against the store.
func (b *Bot) seen(e fetch.Entry) bool {
	if b.store.Contains(e.ID) {
		return true
	}
	return e.Link != "" && e.Link != e.ID && b.store.Contains(e.Link)
}

// composeMessage enriches thin entries with the article page's main text and
// renders the message for the configured target.
func (b *Bot) composeMessage(ctx context.Context, e fetch.Entry) (poster.Message, error) {
	content := strings.TrimSpace(extract.StripHTML(e.Description + " " + e.Content))
	if len(content) < entryContentThreshold && b.extractor != nil {
		if full := b.extractor.MainText(ctx, e.Link); full != "" {
			content = full
		}
	}

	a := compose.Article{Title: e.Title, Content: content, URL: e.Link}
	m := poster.Message{
		Title:     e.Title,
		Summary:   summarize(content),
		Link:      e.Link,
		Author:    e.Author,
		Published: e.Published,
	}
	if b.composer != nil {
		text, err := b.composer.Generate(ctx, a)
		if err != nil {
			return poster.Message{}, err
		}
		m.Text = text
		return m, nil
	}
	m.Text = compose.Plain(a)
	return m, nil
}

// summarize trims extracted content down to something embed-sized.
func summarize(content string) string {
	const maxLen = 500
	r := []rune(content)
	if len(r) <= maxLen {
		return content
	}
	return strings.TrimSpace(string(r[:maxLen])) + "..."
}
