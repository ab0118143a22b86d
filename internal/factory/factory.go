package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/soundcult/listenparty/internal/config"
	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/dependencies/random"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/notify"
	"github.com/soundcult/listenparty/internal/player"
	"github.com/soundcult/listenparty/internal/radio"
	"github.com/soundcult/listenparty/internal/session"
	"github.com/soundcult/listenparty/internal/session/conn"
	"github.com/soundcult/listenparty/internal/transport"
	"github.com/soundcult/listenparty/internal/transport/memory"
	redistransport "github.com/soundcult/listenparty/internal/transport/redis"
)

// Transport type constants
const (
	TransportTypeMemory = "memory"
	TransportTypeRedis  = "redis"
)

// App contains all wired daemon components
type App struct {
	Clock  clock.Clock
	Random random.Random

	PubSub   transport.PubSub
	Player   player.Player
	Radio    radio.Source
	Notifier notify.Notifier

	Profile        model.Profile
	SessionManager *session.Manager

	closers []io.Closer
}

// New creates the daemon's component graph from configuration
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	app := &App{
		Clock:  clk,
		Random: rnd,
	}

	switch cfg.Transport {
	case "", TransportTypeMemory:
		app.PubSub = memory.New(logger)
	case TransportTypeRedis:
		redisCfg := redistransport.DefaultConfig()
		if cfg.RedisURL != "" {
			redisCfg.URL = cfg.RedisURL
		}
		rt, err := redistransport.New(redisCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("redis transport: %w", err)
		}
		app.PubSub = rt
		app.closers = append(app.closers, rt)
	default:
		return nil, errors.New("invalid Transport: must be 'memory' or 'redis'")
	}

	app.Profile = profileFromConfig(cfg)
	app.Player = player.NewSim(clk, logger)
	app.Notifier = notify.NewLog(logger)

	if cfg.CatalogPath != "" {
		tracks, err := loadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		app.Radio = radio.NewCatalog(tracks, rnd)
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.Conn = conn.Config{
		BaseDelay:    cfg.ReconnectBaseDelay,
		MaxDelay:     cfg.ReconnectMaxDelay,
		JitterWindow: cfg.ReconnectJitter,
		MaxAttempts:  cfg.ReconnectMaxAttempts,
	}
	sessionCfg.Sync.DriftInterval = cfg.DriftInterval
	sessionCfg.Sync.DriftThresholdMs = cfg.DriftThresholdMs
	sessionCfg.JoinTimeout = cfg.JoinTimeout

	app.SessionManager = session.NewManager(
		sessionCfg,
		app.PubSub,
		app.Player,
		app.Radio,
		app.Notifier,
		clk,
		rnd,
		logger,
	)

	return app, nil
}

// Close releases transport resources
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// profileFromConfig builds the device's participant profile, generating an
// ID and falling back to the hostname when not configured
func profileFromConfig(cfg config.Config) model.Profile {
	id := cfg.ParticipantID
	if id == "" {
		id = "user-" + uuid.NewString()
	}
	name := cfg.DisplayName
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		} else {
			name = id
		}
	}
	return model.Profile{
		ID:          model.ParticipantID(id),
		DisplayName: name,
		PhotoURL:    cfg.PhotoURL,
	}
}

// loadCatalog reads a JSON array of tracks from disk
func loadCatalog(path string) ([]model.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tracks []model.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}
