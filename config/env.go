package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix         = "PETALTOOLS_"
	envProviderPrefix = "PETALTOOLS_PROVIDER_"
	envAPIKeySuffix   = "_API_KEY"
)

// wellKnownKeys are the provider variables honoured without the
// PETALTOOLS_ prefix, in priority order: the first set variable for a
// provider wins. They override the config file and rank below
// PETALTOOLS_PROVIDER_<NAME>_API_KEY.
var wellKnownKeys = []struct {
	env      string
	provider string
}{
	{"OPENAI_API_KEY", "openai"},
	{"ANTHROPIC_API_KEY", "anthropic"},
	{"GEMINI_API_KEY", "gemini"},
	{"GOOGLE_API_KEY", "gemini"},
}

type envSetter func(c *Config, value string) error

var envSetters = map[string]envSetter{
	"HOST":             func(c *Config, v string) error { c.Server.Host = v; return nil },
	"PORT":             func(c *Config, v string) error { return setInt(&c.Server.Port, v) },
	"CORS_ORIGIN":      func(c *Config, v string) error { c.Server.CORSOrigin = v; return nil },
	"MAX_BODY":         func(c *Config, v string) error { return setInt64(&c.Server.MaxBody, v) },
	"TOOLS_DIR":        func(c *Config, v string) error { c.Tools.Dir = v; return nil },
	"BUILTINS":         func(c *Config, v string) error { c.Tools.Builtins = splitList(v); return nil },
	"WEATHER_BASE_URL": func(c *Config, v string) error { c.Tools.WeatherURL = v; return nil },
	"MARKET_BASE_URL":  func(c *Config, v string) error { c.Tools.MarketDataURL = v; return nil },
	"COERCION":         func(c *Config, v string) error { c.Dispatch.Coercion = v; return nil },
	"DISPATCH_TIMEOUT": func(c *Config, v string) error { return setDuration(&c.Dispatch.Timeout, v) },
	"PROVIDER":         func(c *Config, v string) error { c.Orchestrate.Provider = v; return nil },
	"MODEL":            func(c *Config, v string) error { c.Orchestrate.Model = v; return nil },
	"MODEL_TIMEOUT":    func(c *Config, v string) error { return setDuration(&c.Orchestrate.Timeout, v) },
	"MODEL_RETRIES":    func(c *Config, v string) error { return setInt(&c.Orchestrate.Retry.MaxAttempts, v) },
	"LOG_LEVEL":        func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"LOG_FORMAT":       func(c *Config, v string) error { c.Logging.Format = v; return nil },
	"OTLP_ENDPOINT":    func(c *Config, v string) error { c.Telemetry.OTLPEndpoint = v; return nil },
}

// ApplyEnv overlays PETALTOOLS_* variables and provider API keys from
// environ, given in os.Environ form. Empty variables are ignored.
func (c *Config) ApplyEnv(environ []string) error {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		values[key] = value
	}

	fromEnv := make(map[string]bool, len(wellKnownKeys))
	for _, known := range wellKnownKeys {
		value := strings.TrimSpace(values[known.env])
		if value == "" || fromEnv[known.provider] {
			continue
		}
		c.SetProviderKey(known.provider, value)
		fromEnv[known.provider] = true
	}

	var errs []error
	for key, value := range values {
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, envPrefix)
		if strings.HasPrefix(key, envProviderPrefix) && strings.HasSuffix(key, envAPIKeySuffix) {
			name := strings.TrimSuffix(strings.TrimPrefix(key, envProviderPrefix), envAPIKeySuffix)
			if name != "" && strings.TrimSpace(value) != "" {
				c.SetProviderKey(name, strings.TrimSpace(value))
			}
			continue
		}
		set, ok := envSetters[rest]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := set(c, strings.TrimSpace(value)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*dst = d
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
