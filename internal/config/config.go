package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "YUMISO_"

// Config 汇总服务运行时所需的全部配置。
type Config struct {
	Addr          string `koanf:"http_addr"`
	DBPath        string `koanf:"db_path"`
	AdminUser     string `koanf:"admin_user"`
	AdminPassword string `koanf:"admin_pass"`
	SessionKey    string `koanf:"session_key"`
	CSRFKey       string `koanf:"csrf_key"`
	CSRFSecure    bool   `koanf:"csrf_secure"`
	CronSecret    string `koanf:"cron_secret"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	FlushInterval     time.Duration `koanf:"flush_interval"`
	StreamBuffer      int           `koanf:"stream_buffer"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	SentryDSN string `koanf:"sentry_dsn"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	LogFile   string `koanf:"log_file"`
}

// Defaults 返回未设置环境变量时使用的默认值。
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"http_addr":          ":8080",
		"db_path":            "data/yumiso.db",
		"admin_user":         "admin",
		"admin_pass":         "admin123",
		"session_key":        "0123456789abcdef0123456789abcdef",
		"csrf_key":           "abcdef0123456789abcdef0123456789",
		"csrf_secure":        false,
		"cron_secret":        "",
		"heartbeat_interval": "30s",
		"flush_interval":     "60s",
		"stream_buffer":      32,
		"redis_addr":         "",
		"redis_password":     "",
		"redis_db":           0,
		"sentry_dsn":         "",
		"log_level":          "info",
		"log_format":         "console",
		"log_file":           "",
	}
}

// Load 从环境变量构建配置，并提供合理的默认值。
func Load() (*Config, error) {
	return load(env.Provider(envPrefix, ".", envKey))
}

func load(overrides koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if overrides != nil {
		if err := k.Load(overrides, nil); err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionKey) < 32 {
		return fmt.Errorf("session key must be at least 32 bytes, got %d", len(c.SessionKey))
	}
	if len(c.CSRFKey) < 32 {
		return fmt.Errorf("csrf key must be at least 32 bytes, got %d", len(c.CSRFKey))
	}
	if c.AdminUser == "" || c.AdminPassword == "" {
		return fmt.Errorf("admin credentials must not be empty")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("stream buffer must be positive, got %d", c.StreamBuffer)
	}
	return nil
}

// envKey 将 YUMISO_HEARTBEAT_INTERVAL 映射为 heartbeat_interval。
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, envPrefix))
}
