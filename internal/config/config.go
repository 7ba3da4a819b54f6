package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Target selects the service a run posts to.
type Target string

const (
	TargetX       Target = "x"
	TargetDiscord Target = "discord"
	TargetSlack   Target = "slack"
)

// Loader allows tests to substitute the config source.
type Loader func() (AppConfig, error)

func AppConfigLoader() Loader {
	return LoadAppConfig
}

// Credentials holds the secrets read from the environment at startup.
// The struct is built once and never mutated afterwards.
type Credentials struct {
	// OAuth 1.0a user context for the X API.
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string

	// xAI chat-completions key used by the composer.
	XAIAPIKey string

	DiscordWebhookURL string
	SlackWebhookURL   string
}

type AIConfig struct {
	BaseURL string
	Model   string
	Prompt  string
}

// AppConfig carries everything a single bot run needs.
type AppConfig struct {
	FeedsPath      string
	HistoryBackend string // "file" or "sqlite"
	HistoryPath    string
	LogDir         string
	FetchTimeout   int // seconds
	MaxPosts       int
	Target         Target

	AIConf AIConfig
	Creds  Credentials
}

const (
	defaultFeedsPath   = "rss_feeds.txt"
	defaultHistoryPath = "logs/posted_articles.json"
	defaultLogDir      = "logs"

	DefaultAIBaseURL = "https://api.x.ai/v1"
	DefaultAIModel   = "grok-beta"
)

// LoadAppConfig builds the run configuration from defaults, an optional
// config.yaml and the environment. Environment variables win over the file.
func LoadAppConfig() (AppConfig, error) {
	// Best-effort .env for local runs; CI injects real env vars.
	_ = godotenv.Load()

	ac := AppConfig{
		FeedsPath:      defaultFeedsPath,
		HistoryBackend: "file",
		HistoryPath:    defaultHistoryPath,
		LogDir:         defaultLogDir,
		FetchTimeout:   30,
		MaxPosts:       1,
		Target:         TargetX,
		AIConf: AIConfig{
			BaseURL: DefaultAIBaseURL,
			Model:   DefaultAIModel,
		},
	}

	if path, ok := findConfigFile(); ok {
		if err := applyFile(&ac, path); err != nil {
			return ac, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	ac.Creds = credsFromEnv()
	if v := strings.TrimSpace(os.Getenv("XFEED_TARGET")); v != "" {
		ac.Target = Target(v)
	}

	return ac, nil
}

func credsFromEnv() Credentials {
	return Credentials{
		ConsumerKey:       strings.TrimSpace(os.Getenv("OAUTH_CONSUMER_KEY")),
		ConsumerSecret:    strings.TrimSpace(os.Getenv("OAUTH_CONSUMER_SECRET")),
		AccessToken:       strings.TrimSpace(os.Getenv("OAUTH_ACCESS_TOKEN")),
		AccessTokenSecret: strings.TrimSpace(os.Getenv("OAUTH_ACCESS_TOKEN_SECRET")),
		XAIAPIKey:         strings.TrimSpace(os.Getenv("XAI_API_KEY")),
		DiscordWebhookURL: strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		SlackWebhookURL:   strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
	}
}

// findConfigFile prefers a config.yaml in the working directory (the
// container case) over the user config directory.
func findConfigFile() (string, bool) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	p := filepath.Join(home, ".config", "x-feed", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	return "", false
}

func applyFile(ac *AppConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}

	if v, ok := rawString(raw, "feeds_path"); ok {
		ac.FeedsPath = v
	}
	if v, ok := rawString(raw, "target"); ok {
		ac.Target = Target(v)
	}
	if hist, ok := raw["history"].(map[string]any); ok {
		if v, ok := rawString(hist, "backend"); ok {
			ac.HistoryBackend = v
		}
		if v, ok := rawString(hist, "path"); ok {
			ac.HistoryPath = v
		}
	}
	if v, ok := rawString(raw, "log_dir"); ok {
		ac.LogDir = v
	}
	if v, ok := rawInt(raw, "fetch_timeout"); ok && v > 0 {
		ac.FetchTimeout = v
	}
	if v, ok := rawInt(raw, "max_posts"); ok && v > 0 {
		ac.MaxPosts = v
	}
	if ai, ok := raw["ai"].(map[string]any); ok {
		if v, ok := rawString(ai, "base_url"); ok {
			ac.AIConf.BaseURL = v
		}
		if v, ok := rawString(ai, "model"); ok {
			ac.AIConf.Model = v
		}
		if v, ok := rawString(ai, "prompt"); ok {
			ac.AIConf.Prompt = v
		}
	}
	return nil
}

func rawString(m map[string]any, key string) (string, bool) {
	if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func rawInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Validate checks that everything the selected target needs is present.
// It runs before any network call so a misconfigured scheduled run fails
// fast instead of half-posting.
func (ac AppConfig) Validate() error {
	switch ac.Target {
	case TargetX:
		var missing []string
		for _, kv := range []struct{ name, val string }{
			{"OAUTH_CONSUMER_KEY", ac.Creds.ConsumerKey},
			{"OAUTH_CONSUMER_SECRET", ac.Creds.ConsumerSecret},
			{"OAUTH_ACCESS_TOKEN", ac.Creds.AccessToken},
			{"OAUTH_ACCESS_TOKEN_SECRET", ac.Creds.AccessTokenSecret},
			{"XAI_API_KEY", ac.Creds.XAIAPIKey},
		} {
			if kv.val == "" {
				missing = append(missing, kv.name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("target %q: missing %s", ac.Target, strings.Join(missing, ", "))
		}
	case TargetDiscord:
		if ac.Creds.DiscordWebhookURL == "" {
			return fmt.Errorf("target %q: missing DISCORD_WEBHOOK_URL", ac.Target)
		}
	case TargetSlack:
		if ac.Creds.SlackWebhookURL == "" {
			return fmt.Errorf("target %q: missing SLACK_WEBHOOK_URL", ac.Target)
		}
	default:
		return fmt.Errorf("unknown target %q (want x, discord or slack)", ac.Target)
	}
	if ac.HistoryBackend != "file" && ac.HistoryBackend != "sqlite" {
		return fmt.Errorf("unknown history backend %q (want file or sqlite)", ac.HistoryBackend)
	}
	return nil
}

// ExpandPath expands leading ~ and environment variables in a filesystem path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}
