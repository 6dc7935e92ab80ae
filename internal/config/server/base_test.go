package server

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 1000, cfg.Photos.MonthPageSize)
	assert.Equal(t, "5s", cfg.Library.Debounce)
	assert.Equal(t, "./data/state.db", cfg.Metadata.SQLite.StatePath)
	assert.True(t, cfg.Push.Enabled)
}

func TestLoadServerConfig_Override(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("sync.page_size", 25)
	viper.Set("library.debounce", "250ms")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, 250*time.Millisecond, ParseDuration(cfg.Library.Debounce, time.Second))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, ParseDuration("1m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("bogus", time.Second))
	assert.Equal(t, time.Second, ParseDuration("-1s", time.Second))
}

func TestLoadServerConfig_LogComponents(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("log.components", map[string]any{"syncer": "DEBUG"})

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"syncer": "DEBUG"}, cfg.Log.Components)
	assert.Equal(t, "INFO", cfg.Log.Level)
}
