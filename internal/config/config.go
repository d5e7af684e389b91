// Package config loads the hub's process-level settings: ports, secrets,
// clone roots and concurrency knobs. Per-repo/per-user bindings are not
// here — they live in the relational store (internal/store).
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port    string `envconfig:"PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Storage
	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/hub.db"`

	// Webhook ingress
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" required:"true"`

	// Event dispatcher
	BotLogin           string `envconfig:"BOT_LOGIN"`
	IgnoredUsers       []string `envconfig:"IGNORED_USERS"`
	ReleaseBranchPrefix string `envconfig:"RELEASE_BRANCH_PREFIX" default:"release/"`

	// Admin surface auth (PBKDF2-HMAC-SHA256 salted hash, see internal/api/auth.go)
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH" required:"true"`
	AdminTokenSalt string `envconfig:"ADMIN_TOKEN_SALT" required:"true"`

	// Source host (GitHub App)
	SourceHostBaseURL    string `envconfig:"SOURCE_HOST_BASE_URL" default:"https://api.github.com"`
	SourceHostAppID      int64  `envconfig:"SOURCE_HOST_APP_ID"`
	SourceHostPrivateKey string `envconfig:"SOURCE_HOST_PRIVATE_KEY_PATH"`
	SourceHostToken      string `envconfig:"SOURCE_HOST_TOKEN"` // static PAT, used instead of App auth when set

	// Issue tracker (JIRA)
	TrackerBaseURL  string `envconfig:"TRACKER_BASE_URL"`
	TrackerUsername string `envconfig:"TRACKER_USERNAME"`
	TrackerToken    string `envconfig:"TRACKER_TOKEN"`
	// TrackerPendingVersionField is the custom field id (e.g. "customfield_10050")
	// used to record a resolved-but-unreleased issue's candidate fix version.
	TrackerPendingVersionField string `envconfig:"TRACKER_PENDING_VERSION_FIELD" default:"customfield_10050"`

	// Chat (Slack)
	ChatBotToken string `envconfig:"CHAT_BOT_TOKEN"`

	// Git shell / directory pool
	CloneRoot      string `envconfig:"CLONE_ROOT" default:"/tmp/hub-clones"`
	DirPoolMaxIdle int    `envconfig:"DIRPOOL_MAX_IDLE" default:"50"`

	// Worker pool
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerQueueDepth  int `envconfig:"WORKER_QUEUE_DEPTH" default:"256"`

	// Version-script sandbox
	SandboxBinary string `envconfig:"SANDBOX_BINARY" default:"firejail"`

	// CORS
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads process configuration from the environment, falling back to a
// local .env file when present (godotenv.Load is a no-op error when the
// file is absent, exactly as the teacher treats it).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
