package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 20, cfg.HistoryConfig.Size())
	assert.Equal(t, 20*time.Second, cfg.PresenceConfig.OnlineThreshold())
	assert.Equal(t, time.Hour, cfg.PresenceConfig.MaxAge())
	assert.Equal(t, 10*time.Minute, cfg.SignalingConfig.OfferTTL())
	assert.Equal(t, 10*time.Minute, cfg.SignalingConfig.AnswerTTL())
	assert.Equal(t, 2*time.Minute, cfg.SignalingConfig.LockTTL())
	assert.Equal(t, ":memory:", cfg.SignalingConfig.DBPath())
	assert.Equal(t, 1024, cfg.BoardConfig.RoomLimit())
}

func TestReadConfigurationFile(t *testing.T) {
	contents := `
log_level = "DEBUG"

[history]
chat_history_size = 50

[presence]
online_threshold_seconds = 30

[signaling]
path = "/var/lib/aliboard/signal.db"
lock_ttl_seconds = 60

[board]
max_rooms = 16

[persistence]
type = "sqlite"
dsn = "/var/lib/aliboard/aliboard.db"

[[oidc]]
name = "google"
client_id = "client-1"
provider_url = "https://accounts.google.com"
`
	configFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ioutil.WriteFile(configFile, []byte(contents), 0644))

	cfg, err := ReadConfiguration(configFile, GetFlagSet())
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 50, cfg.HistoryConfig.Size())
	assert.Equal(t, 30*time.Second, cfg.PresenceConfig.OnlineThreshold())
	assert.Equal(t, "/var/lib/aliboard/signal.db", cfg.SignalingConfig.DBPath())
	assert.Equal(t, time.Minute, cfg.SignalingConfig.LockTTL())
	assert.Equal(t, 16, cfg.BoardConfig.RoomLimit())
	assert.Equal(t, "sqlite", cfg.PersistenceConfig.Type)
	require.Len(t, cfg.OIDCConfigs, 1)
	assert.Equal(t, "google", cfg.OIDCConfigs[0].Name)
}

func TestReadConfigurationDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "10-history.toml"), []byte("[history]\nchat_history_size = 5\n"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "20-board.toml"), []byte("[board]\nmax_rooms = 8\n"), 0644))

	cfg, err := ReadConfiguration(dir, GetFlagSet())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HistoryConfig.Size())
	assert.Equal(t, 8, cfg.BoardConfig.RoomLimit())
}

func TestReadConfigurationMissingFile(t *testing.T) {
	_, err := ReadConfiguration(filepath.Join(t.TempDir(), "nope.toml"), GetFlagSet())
	assert.Error(t, err)
}
