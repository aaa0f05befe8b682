package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BLOGCTL"

type config struct {
	Namespace     string        `mapstructure:"namespace"`
	BaseURL       string        `mapstructure:"base_url"` // empty => in-process fake API
	Timeout       time.Duration `mapstructure:"timeout"`
	Encoding      string        `mapstructure:"encoding"` // json | msgpack | cbor
	MaxDecode     int           `mapstructure:"max_decode"`
	KeepUnusedFor time.Duration `mapstructure:"keep_unused_for"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`

	Cache struct {
		Provider   string `mapstructure:"provider"` // ristretto | bigcache | redis
		MaxEntries int64  `mapstructure:"max_entries"`
		GenStore   string `mapstructure:"genstore"` // local | redis
	} `mapstructure:"cache"`

	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		GenTTL   time.Duration `mapstructure:"gen_ttl"`
	} `mapstructure:"redis"`

	Log struct {
		Backend string `mapstructure:"backend"` // zap | logrus | slog
		Level   string `mapstructure:"level"`
		Hooks   bool   `mapstructure:"hooks"`
	} `mapstructure:"log"`

	Serve struct {
		Addr        string        `mapstructure:"addr"`
		NotifyEvery time.Duration `mapstructure:"notify_every"`
		Latency     time.Duration `mapstructure:"latency"`
	} `mapstructure:"serve"`
}

// setDefaults registers every key so AutomaticEnv also reaches keys that
// are absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("namespace", "blog")
	v.SetDefault("base_url", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("encoding", "json")
	v.SetDefault("max_decode", 0)
	v.SetDefault("keep_unused_for", time.Minute)
	v.SetDefault("default_ttl", 0)
	v.SetDefault("cache.provider", "ristretto")
	v.SetDefault("cache.max_entries", 10_000)
	v.SetDefault("cache.genstore", "local")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.gen_ttl", 0)
	v.SetDefault("log.backend", "slog")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.hooks", false)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.notify_every", 0)
	v.SetDefault("serve.latency", 0)
}

// loadConfig reads path (or blogctl.yaml in the working directory and
// $HOME/.blogctl) and applies BLOGCTL_* environment overrides, e.g.
// BLOGCTL_CACHE_PROVIDER=redis. A missing config file is not an error.
func loadConfig(v *viper.Viper, path string) (config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("blogctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.blogctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// validate rejects a generation TTL shorter than record lifetimes: an
// expired generation reads as 0 again and an older record would match it.
func (c config) validate() error {
	if c.Redis.GenTTL <= 0 {
		return nil
	}
	if c.DefaultTTL <= 0 || c.DefaultTTL > c.Redis.GenTTL {
		return fmt.Errorf("redis.gen_ttl (%s) must be at least default_ttl (%s), and default_ttl must be set", c.Redis.GenTTL, c.DefaultTTL)
	}
	return nil
}
