package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15, cfg.BoardWidth)
	assert.Equal(t, 5, cfg.WinLength)
	assert.Equal(t, 30*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.SessionTickInterval)
	assert.Equal(t, 100.0, cfg.Matchmaking.BaseGap)
	assert.Equal(t, -1.0, cfg.Matchmaking.StdDevWeight)
	assert.Same(t, AppConfig, cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BOARD_WIDTH", "9")
	t.Setenv("BOARD_HEIGHT", "9")
	t.Setenv("TURN_TIMEOUT", "5s")
	t.Setenv("MM_MIN_SCORE", "75.5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/stones")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.BoardWidth)
	assert.Equal(t, 5*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 75.5, cfg.Matchmaking.MinScore)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.DatabaseURL, "sslmode=disable")
}

func TestConfig_Validate(t *testing.T) {
	t.Run("win length larger than board", func(t *testing.T) {
		t.Setenv("BOARD_WIDTH", "3")
		t.Setenv("BOARD_HEIGHT", "3")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not fit")
	})

	t.Run("non-positive interval", func(t *testing.T) {
		t.Setenv("SESSION_TICK_INTERVAL", "0s")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_TICK_INTERVAL")
	})
}
