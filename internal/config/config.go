// Package config loads process settings for the webmon daemon and CLI from
// the environment, optionally seeded from a .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultListenAddr      = "127.0.0.1:7777"
	DefaultBlockedPageURL  = "chrome-extension://mindgard/extension/blocked.html"
	DefaultAITimeout       = 10 * time.Second
	DefaultPageInfoTimeout = 2 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	ListenAddr      string        // ex: "127.0.0.1:7777", loopback only
	DataDir         string        // encrypted store, key file and logs
	ShutdownTimeout time.Duration // graceful HTTP shutdown

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev console, false => zap prod JSON to files

	GeminiBaseURL     string        // Generative Language API root (tests point this at a fake)
	AITimeout         time.Duration // per-endpoint deadline
	BlockedPageURL    string        // navigation target for blocked tabs
	FetchDescriptions bool          // fetch page markup when the content script has no description
	PageInfoTimeout   time.Duration // getPageInfo round trip through the bridge
}

// Load reads .env (if present) and then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile reads settings from a specific .env file. Variables already set in
// the environment win over the file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		ListenAddr:      getenv("WEBMON_LISTEN_ADDR", DefaultListenAddr),
		DataDir:         expandHome(getenv("WEBMON_DATA_DIR", defaultDataDir())),
		ShutdownTimeout: mustDuration("WEBMON_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),

		LogLevel:  strings.ToLower(getenv("WEBMON_LOG_LEVEL", "info")),
		PrettyLog: mustBool("WEBMON_PRETTY_LOG", false),

		GeminiBaseURL:     getenv("WEBMON_GEMINI_BASE_URL", ""),
		AITimeout:         mustDuration("WEBMON_AI_TIMEOUT", DefaultAITimeout),
		BlockedPageURL:    getenv("WEBMON_BLOCKED_PAGE_URL", DefaultBlockedPageURL),
		FetchDescriptions: mustBool("WEBMON_FETCH_DESCRIPTIONS", false),
		PageInfoTimeout:   mustDuration("WEBMON_PAGE_INFO_TIMEOUT", DefaultPageInfoTimeout),
	}
}

// LogFile is the daemon's log path inside the data dir.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "webmon.log")
}

// ErrorLogFile is the daemon's error log path inside the data dir.
func (c *Config) ErrorLogFile() string {
	return filepath.Join(c.DataDir, "webmon.error.log")
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "webmon")
	}
	return "~/.local/share/webmon"
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
