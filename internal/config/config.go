// Package config loads the relay's one ambient knob: the log level. Spec
// names no other tunable ("logging level is taken from standard log-framework
// configuration; no other environment variables"), so this deliberately does
// not grow into a file/YAML layer the way a larger service's config package
// would.
//
// Grounded on dantte-lp-gobfd's internal/config/config.go (koanf/v2 +
// providers/env, an env-var-prefix key mapper, a Validate step), trimmed to
// the single field this service needs.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the environment variable prefix physync reads configuration
// from. PHYSYNC_LOG_LEVEL maps to the "log_level" key below.
const envPrefix = "PHYSYNC_"

// Config is the relay's ambient configuration.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `koanf:"log_level"`
}

// defaultLogLevel is used when PHYSYNC_LOG_LEVEL is unset.
const defaultLogLevel = "info"

// Load reads PHYSYNC_LOG_LEVEL from the environment, defaulting to "info".
// override, if non-empty, takes precedence over the environment (the CLI's
// --log-level flag).
func Load(override string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Set("log_level", defaultLogLevel); err != nil {
		return nil, fmt.Errorf("set default log_level: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if override != "" {
		if err := k.Set("log_level", override); err != nil {
			return nil, fmt.Errorf("set log_level override: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKeyMapper transforms PHYSYNC_LOG_LEVEL -> log_level.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(s)
}
