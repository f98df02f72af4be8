package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment variables read by Load.
const (
	EnvListen      = "FOODLENS_LISTEN"
	EnvUpstreamURL = "FOODLENS_UPSTREAM_URL"
	EnvAPIKey      = "FOODLENS_API_KEY"
	EnvModel       = "FOODLENS_MODEL"
	EnvRevision    = "FOODLENS_REVISION"
	EnvDebug       = "FOODLENS_DEBUG"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Load reads the configuration from path (optional) and the process
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup LookupEnv) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup LookupEnv) error {
	strs := map[string]*string{
		EnvListen:      &cfg.Listen,
		EnvUpstreamURL: &cfg.Upstream.URL,
		EnvAPIKey:      &cfg.Upstream.APIKey,
		EnvModel:       &cfg.Upstream.Model,
		EnvRevision:    &cfg.Prompt.Revision,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}
	return nil
}
