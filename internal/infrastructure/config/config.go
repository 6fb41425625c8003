// Package config loads relay configuration from an optional YAML file
// overlaid with environment variables.
//
// Precedence, lowest first: Defaults, the YAML file, the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"go-issue-relay/internal/infrastructure/logger"
)

var (
	ErrMissingWebhookSecret = errors.New("webhook secret is not configured")
	ErrMissingSessionSecret = errors.New("session secret is not configured")
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	GitLab    GitLabConfig    `yaml:"gitlab"`
	Session   SessionConfig   `yaml:"session"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Hub       HubConfig       `yaml:"hub"`
	Log       logger.Config   `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"BIND_HOST"`
	Port string `yaml:"port" env:"PORT"`

	// PublicURL is the externally reachable root of this relay, used
	// when registering provider webhooks and OAuth redirects.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`

	// StaticDir, when set, is served for requests no route matches.
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`

	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type WebhookConfig struct {
	Secret string `yaml:"secret" env:"WEBHOOK_SECRET"`
	// MaxBodyBytes caps how much of a delivery is read.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"WEBHOOK_MAX_BODY_BYTES"`
}

type GitLabConfig struct {
	BaseURL string `yaml:"base_url" env:"GITLAB_BASE_URL"`

	// Token and ProjectID serve snapshot requests from anonymous clients.
	Token     string `yaml:"token"      env:"GITLAB_TOKEN"`
	ProjectID string `yaml:"project_id" env:"PROJECT_ID"`

	ClientID     string   `yaml:"client_id"     env:"GITLAB_CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"GITLAB_CLIENT_SECRET"`
	RedirectURI  string   `yaml:"redirect_uri"  env:"GITLAB_REDIRECT_URI"`
	Scopes       []string `yaml:"scopes"        env:"GITLAB_SCOPES" envSeparator:","`
}

type SessionConfig struct {
	// Secret signs session cookies.
	Secret     string        `yaml:"secret"      env:"SESSION_SECRET"`
	DBPath     string        `yaml:"db_path"     env:"SESSION_DB_PATH"`
	TTL        time.Duration `yaml:"ttl"         env:"SESSION_TTL"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME"`
}

// RedisConfig enables cross-instance fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"`
	Channel  string `yaml:"channel"  env:"REDIS_CHANNEL"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type RateLimitConfig struct {
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst"               env:"RATE_LIMIT_BURST"`
}

type HubConfig struct {
	// SendBuffer is the number of messages queued per client before the
	// client is considered too slow and dropped.
	SendBuffer int `yaml:"send_buffer" env:"HUB_SEND_BUFFER"`
}

// Defaults returns a configuration suitable for local development. It
// does not validate: secrets must still be supplied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "3000",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Webhook: WebhookConfig{
			MaxBodyBytes: 5 << 20,
		},
		GitLab: GitLabConfig{
			BaseURL: "https://gitlab.com",
			Scopes:  []string{"api"},
		},
		Session: SessionConfig{
			DBPath:     "sessions.db",
			TTL:        24 * time.Hour,
			CookieName: "relay_session",
		},
		Redis: RedisConfig{
			Channel: "issue-relay:events",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Hub: HubConfig{
			SendBuffer: 256,
		},
		Log: *logger.NewDefaultConfig(),
	}
}

// Load builds the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDerived() {
	c.GitLab.BaseURL = strings.TrimRight(c.GitLab.BaseURL, "/")

	if c.Server.PublicURL == "" {
		host := c.Server.Host
		if host == "" {
			host = "localhost"
		}
		c.Server.PublicURL = "http://" + net.JoinHostPort(host, c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.GitLab.RedirectURI == "" {
		c.GitLab.RedirectURI = c.Server.PublicURL + "/oauth/callback"
	}
}

// Validate rejects configurations the relay must not start with. An
// empty webhook secret would accept every delivery, so it is an error.
func (c *Config) Validate() error {
	var errs []error

	if c.Webhook.Secret == "" {
		errs = append(errs, ErrMissingWebhookSecret)
	}
	if c.Session.Secret == "" {
		errs = append(errs, ErrMissingSessionSecret)
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is not configured"))
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("webhook max body size must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
