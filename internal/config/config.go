package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type RedditConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	Subreddit      string `yaml:"subreddit"`
	UserAgent      string `yaml:"user_agent"`
	AuthURL        string `yaml:"auth_url"`
	APIURL         string `yaml:"api_url"`
	AdminRecipient string `yaml:"admin_recipient"`
}

type WordPressConfig struct {
	URL         string `yaml:"url"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	EmailDomain string `yaml:"email_domain"`
	Role        string `yaml:"role"`
}

type OpenAIConfig struct {
	URL              string `yaml:"url"`
	Key              string `yaml:"key"`
	AdditionalPrompt string `yaml:"additional_prompt"`
	Size             string `yaml:"size"`
	TimeoutSec       int    `yaml:"timeout_sec"`
}

type SiteConfig struct {
	LoginURL         string `yaml:"login_url"`
	FloorFallbackURL string `yaml:"floor_fallback_url"`
}

type StateConfig struct {
	Backend string `yaml:"backend"` // file, redis, postgres, mongo
	Dir     string `yaml:"dir"`
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
	History bool   `yaml:"history"`
	Mongo   struct {
		Database    string `yaml:"database"`
		Collections struct {
			State   string `yaml:"state"`
			History string `yaml:"history"`
		} `yaml:"collections"`
	} `yaml:"mongo"`
}

type LogicConfig struct {
	PageSize   int `yaml:"page_size"`
	TimeoutSec int `yaml:"timeout_sec"`
	MaxRetries int `yaml:"max_retries"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type BotConfig struct {
	Reddit    RedditConfig    `yaml:"reddit"`
	WordPress WordPressConfig `yaml:"wordpress"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Site      SiteConfig      `yaml:"site"`
	State     StateConfig     `yaml:"state"`
	Logic     LogicConfig     `yaml:"logic"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// envFiles are overlaid onto the process environment before overrides are read.
var envFiles = []string{".env", ".env.local"}

func LoadConfig(path string) (*BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	loadEnvFiles()
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func loadEnvFiles() {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		_ = godotenv.Overload(file)
	}
}

func (c *BotConfig) applyEnv() {
	override := func(dst *string, key string) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
		}
	}
	override(&c.Reddit.Username, "TOWER_REDDIT_USERNAME")
	override(&c.Reddit.Password, "TOWER_REDDIT_PASSWORD")
	override(&c.Reddit.ClientID, "TOWER_REDDIT_CLIENT_ID")
	override(&c.Reddit.ClientSecret, "TOWER_REDDIT_CLIENT_SECRET")
	override(&c.WordPress.User, "TOWER_WP_USER")
	override(&c.WordPress.Password, "TOWER_WP_PASSWORD")
	override(&c.OpenAI.Key, "TOWER_OPENAI_KEY")
	override(&c.State.URL, "TOWER_STATE_URL")
	override(&c.Log.Level, "LOG_LEVEL")

	if value := os.Getenv("TOWER_PAGE_SIZE"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			c.Logic.PageSize = parsed
		}
	}
}

func (c *BotConfig) applyDefaults() {
	if c.Reddit.AuthURL == "" {
		c.Reddit.AuthURL = "https://www.reddit.com/api/v1/access_token"
	}
	if c.Reddit.APIURL == "" {
		c.Reddit.APIURL = "https://oauth.reddit.com"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "tower_bot/1.0"
	}
	if c.WordPress.Role == "" {
		c.WordPress.Role = "floor_author"
	}
	if c.WordPress.EmailDomain == "" {
		c.WordPress.EmailDomain = "thespiraltower.net"
	}
	if c.OpenAI.Size == "" {
		c.OpenAI.Size = "1024x1024"
	}
	if c.OpenAI.TimeoutSec <= 0 {
		c.OpenAI.TimeoutSec = 60
	}
	if c.Site.LoginURL == "" {
		c.Site.LoginURL = "https://www.thespiraltower.net/wp-login.php"
	}
	if c.Site.FloorFallbackURL == "" {
		c.Site.FloorFallbackURL = "https://www.thespiraltower.net/floor/"
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Prefix == "" {
		c.State.Prefix = "tower_bot"
	}
	if c.State.Mongo.Database == "" {
		c.State.Mongo.Database = "tower_bot"
	}
	if c.State.Mongo.Collections.State == "" {
		c.State.Mongo.Collections.State = "bot_state"
	}
	if c.State.Mongo.Collections.History == "" {
		c.State.Mongo.Collections.History = "bot_history"
	}
	if c.Logic.PageSize <= 0 {
		c.Logic.PageSize = 25
	}
	if c.Logic.TimeoutSec <= 0 {
		c.Logic.TimeoutSec = 30
	}
	if c.Logic.MaxRetries < 0 {
		c.Logic.MaxRetries = 0
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "tower_bot"
	}
}

// Validate reports every missing setting at once.
func (c *BotConfig) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	require(c.Reddit.Username, "reddit.username")
	require(c.Reddit.Password, "reddit.password")
	require(c.Reddit.ClientID, "reddit.client_id")
	require(c.Reddit.ClientSecret, "reddit.client_secret")
	require(c.Reddit.Subreddit, "reddit.subreddit")
	require(c.WordPress.URL, "wordpress.url")
	require(c.WordPress.User, "wordpress.user")
	require(c.WordPress.Password, "wordpress.password")
	require(c.OpenAI.URL, "openai.url")

	switch c.State.Backend {
	case "file":
	case "redis", "postgres", "mongo":
		require(c.State.URL, "state.url")
	default:
		errs = append(errs, fmt.Errorf("state.backend %q is not supported", c.State.Backend))
	}
	if c.State.History && c.State.Backend != "mongo" {
		errs = append(errs, fmt.Errorf("state.history requires the mongo backend"))
	}
	return errors.Join(errs...)
}

func (c *BotConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.Logic.TimeoutSec) * time.Second
}

func (c *BotConfig) ImageTimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSec) * time.Second
}
