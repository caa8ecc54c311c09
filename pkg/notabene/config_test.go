package notabene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	require.Equal(t, "notabene.db", cfg.Local.Path)
	require.False(t, cfg.Remote.Enabled)
	require.False(t, cfg.Calendar.Enabled)
	require.Equal(t, 5*time.Minute, cfg.Notes.UndoRetention)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("NOTABENE_PORT", "9999")
	t.Setenv("NOTABENE_DB_PATH", "/tmp/other.db")
	t.Setenv("NOTABENE_UNDO_RETENTION", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "/tmp/other.db", cfg.Local.Path)
	require.Equal(t, 30*time.Second, cfg.Notes.UndoRetention)
}

func TestConfigValidation(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Server.Port = 0
	require.Error(t, cfg.validate())

	cfg.Server.Port = 8080
	cfg.Remote.Enabled = true
	cfg.Remote.URL = ""
	require.Error(t, cfg.validate())
}
