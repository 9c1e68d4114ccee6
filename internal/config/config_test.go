package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
database:
  host: db.internal
  dbname: curator
redis:
  addr: redis.internal:6379
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.TeaserTTL)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.PollTimeout)
	assert.Equal(t, 100, cfg.Monitor.RecentLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Monitor.SnapshotRetention)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 100, cfg.Worker.BatchSize)
	assert.Equal(t, 30*24*time.Hour, cfg.Worker.DedupTTL)
	assert.False(t, cfg.Debug)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
debug: true
server:
  address: ":9090"
  read_timeout: 5s
database:
  host: db.internal
  port: "5433"
  user: curator
  password: secret
  dbname: curator
  sslmode: require
redis:
  addr: redis.internal:6379
  db: 2
ingest:
  teaser_ttl: 30m
  poll_timeout: 45s
monitor:
  enabled: true
  recent_limit: 250
worker:
  poll_interval: 2s
  batch_size: 50
channels:
  drupal:
    enabled: true
    url: https://cms.example.com
    username: publisher
    token: drupal-token
  email:
    enabled: true
    digest: true
    region: us-east-1
    from: news@example.com
    recipients: [editors@example.com]
  social:
    enabled: true
    webhook_url: https://hooks.example.com/social
archive:
  enabled: true
  endpoint: minio.internal:9000
  bucket: curator-archive
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "5433", cfg.Database.Port)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Minute, cfg.Ingest.TeaserTTL)
	assert.Equal(t, 45*time.Second, cfg.Ingest.PollTimeout)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, 250, cfg.Monitor.RecentLimit)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 50, cfg.Worker.BatchSize)
	assert.True(t, cfg.Channels.Drupal.Enabled)
	assert.Equal(t, "https://cms.example.com", cfg.Channels.Drupal.URL)
	assert.True(t, cfg.Channels.Email.Digest)
	assert.Equal(t, []string{"editors@example.com"}, cfg.Channels.Email.Recipients)
	assert.Equal(t, "https://hooks.example.com/social", cfg.Channels.Social.WebhookURL)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "curator-archive", cfg.Archive.Bucket)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_DEBUG", "yes")
	t.Setenv("CURATOR_PORT", "3000")
	t.Setenv("POSTGRES_HOST", "pg.prod.internal")
	t.Setenv("POSTGRES_PASSWORD", "env-secret")
	t.Setenv("REDIS_ADDR", "redis.prod.internal:6380")
	t.Setenv("DRUPAL_TOKEN", "env-drupal-token")

	cfg, err := config.Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, "pg.prod.internal", cfg.Database.Host)
	assert.Equal(t, "env-secret", cfg.Database.Password)
	assert.Equal(t, "redis.prod.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "env-drupal-token", cfg.Channels.Drupal.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "database: [not a map"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "drupal enabled without url",
			yaml: minimalYAML + `
channels:
  drupal:
    enabled: true
    token: tok
`,
			want: "channels.drupal.url",
		},
		{
			name: "drupal enabled without token",
			yaml: minimalYAML + `
channels:
  drupal:
    enabled: true
    url: https://cms.example.com
`,
			want: "channels.drupal.token",
		},
		{
			name: "email enabled without recipients",
			yaml: minimalYAML + `
channels:
  email:
    enabled: true
    from: news@example.com
`,
			want: "channels.email.recipients",
		},
		{
			name: "social enabled without webhook",
			yaml: minimalYAML + `
channels:
  social:
    enabled: true
`,
			want: "channels.social.webhook_url",
		},
		{
			name: "archive enabled without endpoint",
			yaml: minimalYAML + `
archive:
  enabled: true
  bucket: b
`,
			want: "archive.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
