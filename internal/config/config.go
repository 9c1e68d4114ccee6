// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/curator/internal/archive"
)

const (
	// DefaultServerAddress is the default listen address
	DefaultServerAddress = ":8080"
	// DefaultReadTimeoutSeconds is the default read timeout in seconds
	DefaultReadTimeoutSeconds = 10
	// DefaultWriteTimeoutSeconds is the default write timeout in seconds
	DefaultWriteTimeoutSeconds = 30
	// DefaultShutdownTimeoutSeconds is the default shutdown timeout in seconds
	DefaultShutdownTimeoutSeconds = 30
)

// Config is the root configuration for the curator service.
type Config struct {
	Debug    bool           `yaml:"debug"` // controls log level and format
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Worker   WorkerConfig   `yaml:"worker"`
	Channels ChannelsConfig `yaml:"channels"`
	Archive  archive.Config `yaml:"archive"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IngestConfig tunes feed polling and page crawling.
type IngestConfig struct {
	TeaserTTL   time.Duration `yaml:"teaser_ttl"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// MonitorConfig tunes the drift monitor.
type MonitorConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RecentLimit       int           `yaml:"recent_limit"`
	SnapshotRetention time.Duration `yaml:"snapshot_retention"`
}

// WorkerConfig tunes the outbox worker.
type WorkerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	BatchSize      int           `yaml:"batch_size"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	DedupTTL       time.Duration `yaml:"dedup_ttl"`
}

// ChannelsConfig enables and configures the publishing channels.
type ChannelsConfig struct {
	Drupal    DrupalConfig    `yaml:"drupal"`
	Email     EmailConfig     `yaml:"email"`
	Social    SocialConfig    `yaml:"social"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// DrupalConfig configures the Drupal JSON:API channel.
type DrupalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	Token         string `yaml:"token"`
	AuthMethod    string `yaml:"auth_method"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
}

// EmailConfig configures the SES email channel. With Digest set, recipients
// get one summary per site per worker pass instead of one mail per item.
type EmailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Digest     bool     `yaml:"digest"`
	Region     string   `yaml:"region"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// SocialConfig configures the social webhook channel.
type SocialConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Token      string `yaml:"token"`
	BitlyToken string `yaml:"bitly_token"` // enables link shortening when set
}

// BroadcastConfig configures the Redis pub/sub channel.
type BroadcastConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads, defaults, overrides and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Channels.Drupal.Enabled {
		if c.Channels.Drupal.URL == "" {
			return errors.New("channels.drupal.url is required when the channel is enabled")
		}
		if c.Channels.Drupal.Token == "" {
			return errors.New("channels.drupal.token is required when the channel is enabled")
		}
	}
	if c.Channels.Email.Enabled {
		if c.Channels.Email.From == "" {
			return errors.New("channels.email.from is required when the channel is enabled")
		}
		if len(c.Channels.Email.Recipients) == 0 {
			return errors.New("channels.email.recipients is required when the channel is enabled")
		}
	}
	if c.Channels.Social.Enabled && c.Channels.Social.WebhookURL == "" {
		return errors.New("channels.social.webhook_url is required when the channel is enabled")
	}
	if c.Archive.Enabled && c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint is required when archiving is enabled")
	}
	return nil
}

// setDefaults fills in defaults for anything the file left unset.
func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeoutSeconds * time.Second
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "curator"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Ingest.TeaserTTL == 0 {
		cfg.Ingest.TeaserTTL = 10 * time.Minute
	}
	if cfg.Ingest.PollTimeout == 0 {
		cfg.Ingest.PollTimeout = 2 * time.Minute
	}
	if cfg.Monitor.RecentLimit == 0 {
		cfg.Monitor.RecentLimit = 100
	}
	if cfg.Monitor.SnapshotRetention == 0 {
		cfg.Monitor.SnapshotRetention = 7 * 24 * time.Hour
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 5 * time.Second
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 100
	}
	if cfg.Worker.PublishTimeout == 0 {
		cfg.Worker.PublishTimeout = 10 * time.Second
	}
	if cfg.Worker.DedupTTL == 0 {
		cfg.Worker.DedupTTL = 30 * 24 * time.Hour
	}
}

// overrideWithEnvVars applies deployment-level overrides. Secrets are always
// taken from the environment when present so they never live in the file.
func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("CURATOR_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DRUPAL_TOKEN"); v != "" {
		cfg.Channels.Drupal.Token = v
	}
	if v := os.Getenv("SOCIAL_WEBHOOK_TOKEN"); v != "" {
		cfg.Channels.Social.Token = v
	}
	if v := os.Getenv("BITLY_TOKEN"); v != "" {
		cfg.Channels.Social.BitlyToken = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
}

// parseBool parses common boolean representations: "true", "1", "yes".
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
