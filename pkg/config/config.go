// Package config loads the relay configuration. Values are layered:
// defaults, then a TOML file, then FOODLENS_* environment variables, then
// command line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/papercomputeco/foodlens/pkg/prompt"
)

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":5000")
	Listen string `toml:"listen"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// LogFormat is "console" or "json".
	LogFormat string `toml:"log_format"`

	Upstream Upstream `toml:"upstream"`
	Prompt   Prompt   `toml:"prompt"`
	CORS     CORS     `toml:"cors"`
	Storage  Storage  `toml:"storage"`
	Cache    Cache    `toml:"cache"`
}

// Upstream configures the hosted language-model API.
type Upstream struct {
	URL          string        `toml:"url"`
	APIKey       string        `toml:"api_key"`
	Model        string        `toml:"model"`
	Timeout      time.Duration `toml:"timeout"`
	MaxRetries   int           `toml:"max_retries"`
	RetryBackoff time.Duration `toml:"retry_backoff"`
	RateLimit    float64       `toml:"rate_limit"`
	RateBurst    int           `toml:"rate_burst"`
}

// Prompt selects the instruction template.
type Prompt struct {
	Revision string `toml:"revision"`

	// Instruction replaces the revision's template text when set.
	Instruction string `toml:"instruction"`
}

// CORS configures cross-origin access.
type CORS struct {
	AllowOrigins string `toml:"allow_origins"`
}

// Storage selects where analyses are recorded.
type Storage struct {
	Backend  string `toml:"backend"`
	Path     string `toml:"path"`
	RedisURL string `toml:"redis_url"`
}

// Cache reuses recorded verdicts for identical prompts.
type Cache struct {
	Enabled bool          `toml:"enabled"`
	TTL     time.Duration `toml:"ttl"`
}

// Default returns the built-in configuration. It has no upstream URL, so it
// does not validate until one is supplied.
func Default() *Config {
	return &Config{
		Listen:    ":5000",
		LogFormat: "console",
		Upstream: Upstream{
			Model:        "gpt-3.5-turbo",
			Timeout:      60 * time.Second,
			RetryBackoff: 500 * time.Millisecond,
			RateBurst:    1,
		},
		Prompt: Prompt{
			Revision: prompt.DefaultRevision,
		},
		CORS: CORS{
			AllowOrigins: "*",
		},
		Storage: Storage{
			Backend: StorageMemory,
		},
		Cache: Cache{
			TTL: 24 * time.Hour,
		},
	}
}

// Revision resolves the configured prompt revision.
func (c *Config) Revision() (prompt.Revision, error) {
	r, err := prompt.Lookup(c.Prompt.Revision)
	if err != nil {
		return prompt.Revision{}, err
	}
	return r.WithInstruction(c.Prompt.Instruction), nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}

	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}

	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream url is required"))
	} else if u, err := url.Parse(c.Upstream.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream url %q must be an absolute http(s) URL", c.Upstream.URL))
	}
	if c.Upstream.Timeout < 0 {
		errs = append(errs, errors.New("upstream timeout must not be negative"))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, errors.New("upstream max_retries must not be negative"))
	}
	if c.Upstream.RateLimit < 0 {
		errs = append(errs, errors.New("upstream rate_limit must not be negative"))
	}

	if _, err := c.Revision(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage path is required for the sqlite backend"))
		}
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Cache.Enabled {
		if c.Storage.Backend == StorageNone {
			errs = append(errs, errors.New("cache requires a storage backend"))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("cache ttl must be positive"))
		}
	}

	return errors.Join(errs...)
}
