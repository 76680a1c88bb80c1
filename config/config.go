// Package config loads resolver settings from the environment. Only
// scalar knobs live here; stores, fetchers, and adapters are wired in
// code by the embedding application.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/medrec-labs/profilecache"
)

type Config struct {
	Namespace       string `env:"PROFILECACHE_NAMESPACE" envDefault:"patients"`
	ProfileStoreURL string `env:"PROFILECACHE_PROFILE_URL"`

	// CachePath is the durable-tier file; empty disables the durable
	// tier and the cache degrades to in-process only.
	CachePath string `env:"PROFILECACHE_CACHE_PATH"`

	ProfileTTL       time.Duration `env:"PROFILECACHE_PROFILE_TTL" envDefault:"30m"`
	PhotoTTL         time.Duration `env:"PROFILECACHE_PHOTO_TTL" envDefault:"30m"`
	PhotoNegativeTTL time.Duration `env:"PROFILECACHE_PHOTO_NEGATIVE_TTL" envDefault:"10m"`
	FetchTimeout     time.Duration `env:"PROFILECACHE_FETCH_TIMEOUT" envDefault:"15s"`
	PhotoTimeout     time.Duration `env:"PROFILECACHE_PHOTO_TIMEOUT" envDefault:"8s"`

	MaxAttempts int    `env:"PROFILECACHE_MAX_RECOVERY_ATTEMPTS" envDefault:"3"`
	LoginPath   string `env:"PROFILECACHE_LOGIN_PATH" envDefault:"/login"`
	Disabled    bool   `env:"PROFILECACHE_DISABLED"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Apply copies the scalar settings onto opts, leaving stores, fetchers,
// and adapters untouched.
func (c Config) Apply(opts *profilecache.Options) {
	opts.Namespace = c.Namespace
	opts.ProfileTTL = c.ProfileTTL
	opts.PhotoTTL = c.PhotoTTL
	opts.PhotoNegativeTTL = c.PhotoNegativeTTL
	opts.PhotoTimeout = c.PhotoTimeout
	opts.MaxAttempts = c.MaxAttempts
	opts.LoginPath = c.LoginPath
	opts.Disabled = c.Disabled
}
