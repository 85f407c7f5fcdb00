package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"WEBMON_LISTEN_ADDR", "WEBMON_DATA_DIR", "WEBMON_LOG_LEVEL", "WEBMON_PRETTY_LOG",
		"WEBMON_GEMINI_BASE_URL", "WEBMON_AI_TIMEOUT", "WEBMON_BLOCKED_PAGE_URL",
		"WEBMON_FETCH_DESCRIPTIONS", "WEBMON_PAGE_INFO_TIMEOUT", "WEBMON_SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")

	cfg := FromEnv()

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, "/tmp/xdg/webmon", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.PrettyLog)
	assert.Empty(t, cfg.GeminiBaseURL)
	assert.Equal(t, 10*time.Second, cfg.AITimeout)
	assert.Equal(t, DefaultBlockedPageURL, cfg.BlockedPageURL)
	assert.False(t, cfg.FetchDescriptions)
	assert.Equal(t, 2*time.Second, cfg.PageInfoTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("WEBMON_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("WEBMON_DATA_DIR", "/var/lib/webmon")
	t.Setenv("WEBMON_LOG_LEVEL", "DEBUG")
	t.Setenv("WEBMON_PRETTY_LOG", "true")
	t.Setenv("WEBMON_GEMINI_BASE_URL", "http://127.0.0.1:8081/v1beta")
	t.Setenv("WEBMON_AI_TIMEOUT", "3s")
	t.Setenv("WEBMON_FETCH_DESCRIPTIONS", "1")

	cfg := FromEnv()

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/webmon", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.PrettyLog)
	assert.Equal(t, "http://127.0.0.1:8081/v1beta", cfg.GeminiBaseURL)
	assert.Equal(t, 3*time.Second, cfg.AITimeout)
	assert.True(t, cfg.FetchDescriptions)
	assert.Equal(t, "/var/lib/webmon/webmon.log", cfg.LogFile())
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "250ms", 250 * time.Millisecond},
		{"garbage", "soon", time.Minute},
		{"negative", "-1s", time.Minute},
		{"unset", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WEBMON_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, mustDuration("WEBMON_TEST_DURATION", time.Minute))
		})
	}
}

func TestMustBool(t *testing.T) {
	t.Setenv("WEBMON_TEST_BOOL", "maybe")
	assert.True(t, mustBool("WEBMON_TEST_BOOL", true))

	t.Setenv("WEBMON_TEST_BOOL", "false")
	assert.False(t, mustBool("WEBMON_TEST_BOOL", true))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local/share/webmon"), expandHome("~/.local/share/webmon"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
}

func TestLoadFile(t *testing.T) {
	t.Setenv("WEBMON_LISTEN_ADDR", "")
	os.Unsetenv("WEBMON_LISTEN_ADDR")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WEBMON_LISTEN_ADDR=127.0.0.1:7000\n"), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
