// Package config loads defender configuration from the environment.
// Everything is passed explicitly into constructors; nothing here is
// consulted as ambient global state after startup.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	platformstrings "github.com/Rooyande/eclis-ninja/pkg/platform/strings"
)

const envPrefix = "DEFENDER"

// RunMode selects how updates reach the bot.
type RunMode string

const (
	// RunModeLocal long-polls the platform from the local process.
	RunModeLocal RunMode = "local"
	// RunModeServer receives updates pushed to a webhook endpoint.
	RunModeServer RunMode = "server"
)

// Config is the full defender configuration.
type Config struct {
	RunMode  string `envconfig:"RUN_MODE" default:"local"`
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	Admins   string `envconfig:"ADMINS"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	Port          int    `envconfig:"PORT" default:"10000"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	EnforceWorkers     int           `envconfig:"ENFORCE_WORKERS" default:"4"`
	EnforceCallTimeout time.Duration `envconfig:"ENFORCE_CALL_TIMEOUT" default:"10s"`

	RaidWindow     time.Duration `envconfig:"RAID_WINDOW" default:"30s"`
	RaidThreshold  int           `envconfig:"RAID_THRESHOLD" default:"10"`
	NotifyCooldown time.Duration `envconfig:"NOTIFY_COOLDOWN" default:"30m"`
}

// FromEnv builds a Config from DEFENDER_* environment variables and
// validates the run-mode specific requirements.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.RunMode = strings.ToLower(strings.TrimSpace(cfg.RunMode))

	switch RunMode(cfg.RunMode) {
	case RunModeLocal:
	case RunModeServer:
		if cfg.PublicBaseURL == "" {
			return nil, fmt.Errorf("PUBLIC_BASE_URL is required in server mode")
		}
		if cfg.WebhookSecret == "" {
			return nil, fmt.Errorf("WEBHOOK_SECRET is required in server mode")
		}
	default:
		return nil, fmt.Errorf("unknown run mode %q", cfg.RunMode)
	}

	return &cfg, nil
}

// AdminIDs parses the comma-separated admin allow-list. Duplicates and
// non-numeric entries are dropped rather than failing startup, matching
// the tolerance of the surrounding deployment tooling.
func (c *Config) AdminIDs() []int64 {
	var ids []int64
	for _, part := range platformstrings.DedupeAndTrim(strings.Split(c.Admins, ",")) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Addr returns the listen address for server mode and the ops endpoints.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
