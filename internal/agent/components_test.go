package agent

import (
	"context"
	"path/filepath"
	"testing"

	config "github.com/mwantia/gophotos/internal/config/server"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.BaseServerConfig {
	cfg := config.GetServerDefault()
	dir := t.TempDir()
	cfg.Metadata.SQLite.Path = filepath.Join(dir, "mirror.db")
	cfg.Metadata.SQLite.StatePath = filepath.Join(dir, "state.db")
	cfg.Remote.URL = "http://127.0.0.1:1"
	return &cfg
}

func TestNewComponents(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := NewComponents(ctx, cfg, log.NewNopLoggerService())
	require.NoError(t, err)

	assert.Equal(t, "standard_photos_drive_photos_drive", c.Drive.Key())
	assert.NoError(t, c.Mirror.Health(ctx))

	have, err := c.Engine.HaveData(ctx, c.Drive)
	require.NoError(t, err)
	assert.False(t, have)

	require.NoError(t, c.Close(ctx))
	assert.FileExists(t, cfg.Metadata.SQLite.Path)
	assert.FileExists(t, cfg.Metadata.SQLite.StatePath)
}

func TestNewComponents_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.URL = ""
	_, err := NewComponents(context.Background(), cfg, log.NewNopLoggerService())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Metadata.Type = "postgres"
	_, err = NewComponents(context.Background(), cfg, log.NewNopLoggerService())
	assert.Error(t, err)
}
