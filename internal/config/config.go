package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Redis RedisConfig `yaml:"redis"`
	Lock  LockConfig  `yaml:"lock"`
}

// RedisConfig holds connection settings for the backing Redis-compatible
// store.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured dial/command timeout as a duration.
func (c RedisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockConfig holds the default acquisition parameters lock-admin's "hold"
// subcommand falls back to when it isn't given more specific guidance on
// the command line: the TTL buffer added on top of the requested hold
// duration, whether to keep the key alive with the auto-renewal worker
// instead of relying on that buffer alone, and how long an Acquire call is
// allowed to block.
type LockConfig struct {
	ExpireSeconds      int  `yaml:"expire_seconds"`
	AutoRenewal        bool `yaml:"auto_renewal"`
	AcquireTimeoutSecs int  `yaml:"acquire_timeout_seconds"`
}

// Expire returns the configured lock TTL as a duration. Load fills in 60
// seconds when the file leaves it unset; lock-admin's "hold" treats a zero
// value as a 5-second buffer.
func (c LockConfig) Expire() time.Duration {
	return time.Duration(c.ExpireSeconds) * time.Second
}

// AcquireTimeout returns the configured acquire timeout as a duration. Zero
// means unset; lock-admin's "hold" then bounds Acquire at 30 seconds.
func (c LockConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSecs) * time.Second
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TimeoutSeconds == 0 {
		cfg.Redis.TimeoutSeconds = 5
	}
	if cfg.Lock.ExpireSeconds == 0 {
		cfg.Lock.ExpireSeconds = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. It
// automatically loads a .env file (if present) before reading env vars, so
// secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if v := os.Getenv("LOCK_AUTO_RENEWAL"); v == "true" || v == "1" {
		cfg.Lock.AutoRenewal = true
	}

	return cfg, nil
}
