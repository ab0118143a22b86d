package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundcult/listenparty/internal/config"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/testutil"
	"github.com/soundcult/listenparty/internal/transport/memory"
)

func memoryConfig() config.Config {
	return config.Config{
		Transport:     TransportTypeMemory,
		ParticipantID: "user-1",
		DisplayName:   "User One",
	}
}

func TestNewWithMemoryTransport(t *testing.T) {
	app, err := New(memoryConfig(), testutil.NopLogger())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	require.IsType(t, &memory.Bus{}, app.PubSub)
	require.NotNil(t, app.SessionManager)
	require.NotNil(t, app.Player)
	require.Nil(t, app.Radio, "no radio without a catalog")
	require.Equal(t, model.ParticipantID("user-1"), app.Profile.ID)
	require.Equal(t, "User One", app.Profile.DisplayName)
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	cfg := memoryConfig()
	cfg.Transport = "carrier-pigeon"

	_, err := New(cfg, testutil.NopLogger())
	require.Error(t, err)
}

func TestNewGeneratesProfileDefaults(t *testing.T) {
	cfg := memoryConfig()
	cfg.ParticipantID = ""
	cfg.DisplayName = ""

	app, err := New(cfg, testutil.NopLogger())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	require.NotEmpty(t, app.Profile.ID)
	require.NotEmpty(t, app.Profile.DisplayName)
}

func TestNewLoadsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "track-a", "title": "Track A", "artist": "Artist", "duration_ms": 1000},
		{"id": "track-b", "title": "Track B", "artist": "Artist", "duration_ms": 2000}
	]`), 0o644))

	cfg := memoryConfig()
	cfg.CatalogPath = path

	app, err := New(cfg, testutil.NopLogger())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	require.NotNil(t, app.Radio)
	tracks, err := app.Radio.NextTracks(context.Background(), nil, 2)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
}

func TestNewRejectsBadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	cfg := memoryConfig()
	cfg.CatalogPath = path

	_, err := New(cfg, testutil.NopLogger())
	require.Error(t, err)
}
