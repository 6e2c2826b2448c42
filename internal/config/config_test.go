package config

import (
	"testing"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 60*time.Second, cfg.FlushInterval)
	require.Equal(t, 32, cfg.StreamBuffer)
	require.Empty(t, cfg.RedisAddr)
	require.Empty(t, cfg.CronSecret)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(confmap.Provider(map[string]interface{}{
		"http_addr":          ":9090",
		"heartbeat_interval": "5s",
		"cron_secret":        "s3cret",
		"csrf_secure":        "true",
		"redis_db":           "2",
	}, "."))
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, "s3cret", cfg.CronSecret)
	require.True(t, cfg.CSRFSecure)
	require.Equal(t, 2, cfg.RedisDB)
}

func TestLoad_RejectsShortSessionKey(t *testing.T) {
	_, err := load(confmap.Provider(map[string]interface{}{
		"session_key": "short",
	}, "."))
	require.Error(t, err)
	require.Contains(t, err.Error(), "session key")
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	_, err := load(confmap.Provider(map[string]interface{}{
		"flush_interval": "0s",
	}, "."))
	require.Error(t, err)
}

func TestLoad_StreamBufferLimit(t *testing.T) {
	_, err := load(confmap.Provider(map[string]interface{}{"stream_buffer": 0}, "."))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stream buffer")

	cfg, err := load(confmap.Provider(map[string]interface{}{"stream_buffer": 1}, "."))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.StreamBuffer)
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "heartbeat_interval", envKey("YUMISO_HEARTBEAT_INTERVAL"))
	require.Equal(t, "db_path", envKey("YUMISO_DB_PATH"))
}
