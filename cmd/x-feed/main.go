package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/anthonyrussano/x-feed/internal/bot"
	"github.com/anthonyrussano/x-feed/internal/config"
	"github.com/anthonyrussano/x-feed/internal/feedlist"
	"github.com/anthonyrussano/x-feed/internal/history"
)

// version is overridable at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	app := &cli.Command{
		Name:  "x-feed",
		Usage: "Post new RSS entries to X, Discord or Slack",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute one bot pass and exit (scheduling is external)",
				Flags: runFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runBot(ctx, c)
				},
			},
			{
				Name:  "feeds",
				Usage: "Parse and print the feed list",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "feeds", Usage: "Path to the feed list", Value: "rss_feeds.txt"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					feeds, err := feedlist.Load(c.String("feeds"))
					if err != nil {
						return err
					}
					for _, f := range feeds {
						if f.Note != "" {
							fmt.Printf("%s\t# %s\n", f.URL, f.Note)
						} else {
							fmt.Println(f.URL)
						}
					}
					return nil
				},
			},
			{
				Name:  "history",
				Usage: "Print posted-article history, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "hours", Usage: "Time window in hours (0 = everything)", Value: 0},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return printHistory(c.Int("hours"))
				},
			},
			{
				Name:  "version",
				Usage: "Print version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("x-feed %s\n", version)
					return nil
				},
			},
		},
		// Bare invocation behaves like "run", matching the original
		// container entrypoint.
		Flags: runFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return runBot(ctx, c)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "feeds", Usage: "Path to the feed list"},
		&cli.StringFlag{Name: "history", Usage: "Path to the posted-article history"},
		&cli.StringFlag{Name: "log-dir", Usage: "Directory for log files and run records"},
		&cli.StringFlag{Name: "target", Usage: "Posting target (x, discord, slack)"},
		&cli.BoolFlag{Name: "random-feed", Usage: "Pick one feed at random and post at most one entry"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Compose but do not post or mark history"},
		&cli.IntFlag{Name: "max-posts", Usage: "Cap on posts per run"},
	}
}

func runBot(ctx context.Context, c *cli.Command) error {
	opts := bot.Options{
		FeedsPath:   c.String("feeds"),
		HistoryPath: c.String("history"),
		LogDir:      c.String("log-dir"),
		Target:      c.String("target"),
		RandomFeed:  c.Bool("random-feed"),
		DryRun:      c.Bool("dry-run"),
		MaxPosts:    c.Int("max-posts"),
	}
	return bot.Run(ctx, opts, config.AppConfigLoader())
}

func printHistory(hours int) error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records := store.All()
	var cutoff time.Time
	if hours > 0 {
		cutoff = time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	shown := 0
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if !cutoff.IsZero() && r.Date.Before(cutoff) {
			continue
		}
		fmt.Printf("%s\t%s\n", r.Date.Format(time.RFC3339), r.URL)
		shown++
	}
	if shown == 0 {
		fmt.Println("No posted articles in the selected window.")
	}
	return nil
}
