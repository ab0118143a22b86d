package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds daemon configuration, loaded from LISTENPARTY_-prefixed
// environment variables
type Config struct {
	// Local API listener
	ListenHost string `env:"LISTEN_HOST" envDefault:"127.0.0.1"`
	ListenPort int    `env:"LISTEN_PORT" envDefault:"7616"`

	// Transport selects the session pub/sub backend ("memory" or "redis").
	// Memory only connects devices within one process; real multi-device
	// sessions need redis.
	Transport string `env:"TRANSPORT" envDefault:"redis"`
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Device identity. ParticipantID defaults to a generated ID persisted
	// nowhere, so set it to keep a stable identity across restarts.
	ParticipantID string `env:"PARTICIPANT_ID"`
	DisplayName   string `env:"DISPLAY_NAME"`
	PhotoURL      string `env:"PHOTO_URL"`

	// CatalogPath points at a JSON track list used as the radio source.
	// Empty disables radio autofetch.
	CatalogPath string `env:"CATALOG_PATH"`

	// Session tuning
	JoinTimeout      time.Duration `env:"JOIN_TIMEOUT" envDefault:"5s"`
	DriftInterval    time.Duration `env:"DRIFT_INTERVAL" envDefault:"3s"`
	DriftThresholdMs int64         `env:"DRIFT_THRESHOLD_MS" envDefault:"1500"`

	// Reconnection policy
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"1s"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`
	ReconnectJitter      time.Duration `env:"RECONNECT_JITTER" envDefault:"1s"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// FromEnv loads configuration from the environment
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LISTENPARTY_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
