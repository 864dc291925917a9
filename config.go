package rawi

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config mirrors the client options for file-driven deployments. Durations
// use Go syntax ("24h", "500ms").
type Config struct {
	MaxAttempts       int      `toml:"max_attempts"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	CacheTTL          duration `toml:"cache_ttl"`
	InitialBackoff    duration `toml:"initial_backoff"`
	MaxBackoff        duration `toml:"max_backoff"`
	BackoffMultiplier float64  `toml:"backoff_multiplier"`
	Jitter            float64  `toml:"jitter"`
	Debug             bool     `toml:"debug"`

	Cache CacheConfig `toml:"cache"`
}

// CacheConfig selects and sizes the persistent cache. An empty Dir keeps the
// in-memory default.
type CacheConfig struct {
	Dir           string   `toml:"dir"`
	CapacityBytes int64    `toml:"capacity_bytes"`
	SweepInterval duration `toml:"sweep_interval"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: "cannot load config file", Cause: err}
	}
	return &cfg, nil
}

// Options translates the config into client options. Zero values are skipped
// so the client defaults apply.
func (cfg *Config) Options() []Option {
	var opts []Option

	if cfg.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithMaxConcurrent(cfg.MaxConcurrent))
	}
	if cfg.CacheTTL.Duration > 0 {
		opts = append(opts, WithCacheTTL(cfg.CacheTTL.Duration))
	}
	if cfg.InitialBackoff.Duration > 0 {
		opts = append(opts, WithInitialBackoff(cfg.InitialBackoff.Duration))
	}
	if cfg.MaxBackoff.Duration > 0 {
		opts = append(opts, WithMaxBackoff(cfg.MaxBackoff.Duration))
	}
	if cfg.BackoffMultiplier > 0 {
		opts = append(opts, WithBackoffMultiplier(cfg.BackoffMultiplier))
	}
	if cfg.Jitter > 0 {
		opts = append(opts, WithJitter(cfg.Jitter))
	}
	if cfg.Debug {
		opts = append(opts, WithSimpleLogger())
	}

	if cfg.Cache.Dir != "" {
		var diskOpts []DiskOption
		if cfg.Cache.CapacityBytes > 0 {
			diskOpts = append(diskOpts, DiskWithCapacity(cfg.Cache.CapacityBytes))
		}
		if cfg.Cache.SweepInterval.Duration > 0 {
			diskOpts = append(diskOpts, DiskWithSweepInterval(cfg.Cache.SweepInterval.Duration))
		}
		opts = append(opts, WithDiskCache(cfg.Cache.Dir, diskOpts...))
	}

	return opts
}
