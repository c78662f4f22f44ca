// Package config loads petaltools settings from a YAML file, environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petaltools/tool"
)

const (
	projectConfigName = "petaltools.yaml"
	homeConfigDir     = ".petaltools"
	homeConfigName    = "config.yaml"
	defaultToolsDir   = "tools"
)

// Config is the full settings tree.
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Tools       ToolsConfig               `yaml:"tools"`
	Dispatch    DispatchConfig            `yaml:"dispatch"`
	Orchestrate OrchestrateConfig         `yaml:"orchestrate"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	// Secrets supplies trusted parameter values by secret name. Values may
	// be stored encrypted with the enc:v1: prefix.
	Secrets   map[string]string `yaml:"secrets"`
	Logging   LoggingConfig     `yaml:"logging"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	CORSOrigin   string        `yaml:"cors_origin"`
	MaxBody      int64         `yaml:"max_body"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MCP toggles the /mcp endpoint.
	MCP *bool `yaml:"mcp"`
}

// ToolsConfig configures discovery.
type ToolsConfig struct {
	// Dir holds *_tool.yaml manifests. When set it must exist; when empty
	// ./tools is scanned if present.
	Dir           string   `yaml:"dir"`
	Builtins      []string `yaml:"builtins"`
	WeatherURL    string   `yaml:"weather_base_url"`
	MarketDataURL string   `yaml:"market_base_url"`
}

// DispatchConfig configures the dispatcher.
type DispatchConfig struct {
	Coercion string        `yaml:"coercion"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OrchestrateConfig configures the language model used for routing.
type OrchestrateConfig struct {
	Provider    string           `yaml:"provider"`
	Model       string           `yaml:"model"`
	Temperature *float64         `yaml:"temperature"`
	MaxTokens   *int             `yaml:"max_tokens"`
	Timeout     time.Duration    `yaml:"timeout"`
	Retry       tool.RetryPolicy `yaml:"retry"`
}

// ProviderConfig holds credentials for one model provider.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig enables OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	temperature := 0.0
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			MaxBody:      1 << 20,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Dispatch: DispatchConfig{
			Coercion: string(tool.PolicyPermissive),
		},
		Orchestrate: OrchestrateConfig{
			Provider:    "openai",
			Temperature: &temperature,
			Timeout:     60 * time.Second,
			Retry:       tool.RetryPolicy{MaxAttempts: 1},
		},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{ServiceName: "petaltools"},
	}
}

// DiscoverPath resolves the config file location with first-match semantics.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath. An explicit path
// that does not exist is an error; missing default locations are not.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	explicit := strings.TrimSpace(explicitPath)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		if homeDir != "" {
			candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads path over Default and decrypts enc:v1: secrets. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path from flag or well-known location
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if cfg.Tools.Dir != "" && !filepath.IsAbs(cfg.Tools.Dir) {
		cfg.Tools.Dir = filepath.Join(filepath.Dir(path), cfg.Tools.Dir)
	}
	if err := cfg.decryptSecrets(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) decryptSecrets() error {
	hasEncrypted := false
	for _, value := range c.Secrets {
		hasEncrypted = hasEncrypted || isEncryptedValue(value)
	}
	for _, p := range c.Providers {
		hasEncrypted = hasEncrypted || isEncryptedValue(p.APIKey)
	}
	if !hasEncrypted {
		return nil
	}

	codec, err := newSecretCodec(secretScope)
	if err != nil {
		return fmt.Errorf("initializing secret codec: %w", err)
	}
	for name, value := range c.Secrets {
		plain, err := codec.Decrypt(value)
		if err != nil {
			return fmt.Errorf("decrypting secret %q: %w", name, err)
		}
		c.Secrets[name] = plain
	}
	for name, p := range c.Providers {
		plain, err := codec.Decrypt(p.APIKey)
		if err != nil {
			return fmt.Errorf("decrypting api key for provider %q: %w", name, err)
		}
		p.APIKey = plain
		c.Providers[name] = p
	}
	return nil
}

// ToolsDir returns the manifest directory and whether it must exist.
func (c Config) ToolsDir() (string, bool) {
	if dir := strings.TrimSpace(c.Tools.Dir); dir != "" {
		return dir, true
	}
	return defaultToolsDir, false
}

// Addr returns the server listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// MCPEnabled reports whether the server exposes /mcp. It defaults to true.
func (c Config) MCPEnabled() bool {
	return c.Server.MCP == nil || *c.Server.MCP
}

// ProviderKey returns the API key configured for provider.
func (c Config) ProviderKey(provider string) string {
	return strings.TrimSpace(c.Providers[strings.ToLower(strings.TrimSpace(provider))].APIKey)
}

// SetProviderKey records key for provider.
func (c *Config) SetProviderKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	p := c.Providers[name]
	p.APIKey = key
	c.Providers[name] = p
}

// SecretLookup resolves trusted parameter values from the environment first
// and the config file second.
func (c Config) SecretLookup() tool.SecretLookup {
	return tool.ChainSecrets(tool.EnvSecrets(), tool.StaticSecrets(c.Secrets))
}

// Validate reports settings that would fail at startup.
func (c Config) Validate() error {
	var errs []error
	if _, err := tool.ParseCoercionPolicy(c.Dispatch.Coercion); err != nil {
		errs = append(errs, fmt.Errorf("dispatch.coercion: %w", err))
	}
	if c.Dispatch.Timeout < 0 {
		errs = append(errs, errors.New("dispatch.timeout: must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Server.MaxBody < 0 {
		errs = append(errs, errors.New("server.max_body: must not be negative"))
	}
	if c.Orchestrate.Retry.MaxAttempts < 0 || c.Orchestrate.Retry.BackoffMS < 0 {
		errs = append(errs, errors.New("orchestrate.retry: values must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}
