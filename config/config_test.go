package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/petal-labs/petaltools/tool"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverPathFromFirstMatch(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	homeConfig := filepath.Join(home, ".petaltools", "config.yaml")
	writeFile(t, homeConfig, "server: {}\n")

	path, found, err := DiscoverPathFrom("", cwd, home)
	if err != nil || !found || path != homeConfig {
		t.Fatalf("DiscoverPathFrom() = %q, %v, %v; want home config", path, found, err)
	}

	projectConfig := filepath.Join(cwd, "petaltools.yaml")
	writeFile(t, projectConfig, "server: {}\n")
	path, found, err = DiscoverPathFrom("", cwd, home)
	if err != nil || !found || path != projectConfig {
		t.Fatalf("DiscoverPathFrom() = %q, %v, %v; want project config", path, found, err)
	}
}

func TestDiscoverPathFromNothingFound(t *testing.T) {
	path, found, err := DiscoverPathFrom("", t.TempDir(), t.TempDir())
	if err != nil || found || path != "" {
		t.Fatalf("DiscoverPathFrom() = %q, %v, %v; want nothing", path, found, err)
	}
}

func TestDiscoverPathFromExplicitMissing(t *testing.T) {
	_, _, err := DiscoverPathFrom(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("DiscoverPathFrom() error = %v, want not found", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "petaltools.yaml")
	writeFile(t, path, `
server:
  port: 9090
  cors_origin: "https://example.test"
tools:
  dir: manifests
  builtins: [weather]
dispatch:
  coercion: strict
  timeout: 5s
orchestrate:
  provider: anthropic
  model: claude-test
  retry:
    max_attempts: 3
    backoff_ms: 10
providers:
  anthropic:
    api_key: sk-test
secrets:
  WEATHER_API_KEY: weather-secret
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("server = %+v, want port override over defaults", cfg.Server)
	}
	toolsDir, required := cfg.ToolsDir()
	if toolsDir != filepath.Join(dir, "manifests") || !required {
		t.Fatalf("ToolsDir() = %q, %v; want path relative to config, required", toolsDir, required)
	}
	if cfg.Dispatch.Timeout != 5*time.Second || cfg.Dispatch.Coercion != "strict" {
		t.Fatalf("dispatch = %+v", cfg.Dispatch)
	}
	if diff := cmp.Diff(tool.RetryPolicy{MaxAttempts: 3, BackoffMS: 10}, cfg.Orchestrate.Retry); diff != "" {
		t.Fatalf("retry mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProviderKey("Anthropic") != "sk-test" {
		t.Fatalf("ProviderKey() = %q", cfg.ProviderKey("anthropic"))
	}
	if cfg.Orchestrate.Temperature == nil || *cfg.Orchestrate.Temperature != 0 {
		t.Fatal("default temperature lost")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petaltools.yaml")
	writeFile(t, path, "server:\n  prot: 9090\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want unknown field error")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8000" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
	if dir, required := cfg.ToolsDir(); dir != "tools" || required {
		t.Fatalf("ToolsDir() = %q, %v; want optional ./tools", dir, required)
	}
	if !cfg.MCPEnabled() {
		t.Fatal("MCP disabled by default")
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	t.Setenv(SecretKeyEnv, "unit-test-key")
	sealed, err := EncryptSecret("weather-secret")
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	if !strings.HasPrefix(sealed, "enc:v1:") || strings.Contains(sealed, "weather-secret") {
		t.Fatalf("EncryptSecret() = %q", sealed)
	}
	sealedKey, err := EncryptSecret("sk-openai")
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "petaltools.yaml")
	writeFile(t, path, "secrets:\n  WEATHER_API_KEY: \""+sealed+"\"\n  PLAIN: plain\nproviders:\n  openai:\n    api_key: \""+sealedKey+"\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]string{"WEATHER_API_KEY": "weather-secret", "PLAIN": "plain"}
	if diff := cmp.Diff(want, cfg.Secrets); diff != "" {
		t.Fatalf("secrets mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProviderKey("openai") != "sk-openai" {
		t.Fatalf("ProviderKey() = %q", cfg.ProviderKey("openai"))
	}
}

func TestLoadWrongSecretKeyFails(t *testing.T) {
	t.Setenv(SecretKeyEnv, "first-key")
	sealed, err := EncryptSecret("weather-secret")
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "petaltools.yaml")
	writeFile(t, path, "secrets:\n  WEATHER_API_KEY: \""+sealed+"\"\n")

	t.Setenv(SecretKeyEnv, "second-key")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Fatalf("Load() error = %v, want decrypt failure naming the secret", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.SetProviderKey("openai", "from-file")

	err := cfg.ApplyEnv([]string{
		"PETALTOOLS_PORT=9999",
		"PETALTOOLS_TOOLS_DIR=/srv/tools",
		"PETALTOOLS_COERCION=strict",
		"PETALTOOLS_DISPATCH_TIMEOUT=2s",
		"PETALTOOLS_PROVIDER=gemini",
		"PETALTOOLS_BUILTINS=weather, market_recap",
		"PETALTOOLS_PROVIDER_ANTHROPIC_API_KEY=sk-ant",
		"OPENAI_API_KEY=from-env",
		"GEMINI_API_KEY=gem-key",
		"UNRELATED=1",
	})
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Tools.Dir != "/srv/tools" || cfg.Dispatch.Coercion != "strict" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Dispatch.Timeout != 2*time.Second || cfg.Orchestrate.Provider != "gemini" {
		t.Fatalf("config = %+v", cfg)
	}
	if diff := cmp.Diff([]string{"weather", "market_recap"}, cfg.Tools.Builtins); diff != "" {
		t.Fatalf("builtins mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProviderKey("anthropic") != "sk-ant" || cfg.ProviderKey("gemini") != "gem-key" {
		t.Fatalf("providers = %+v", cfg.Providers)
	}
	if cfg.ProviderKey("openai") != "from-env" {
		t.Fatalf("ProviderKey(openai) = %q, want OPENAI_API_KEY over the config file", cfg.ProviderKey("openai"))
	}
}

func TestApplyEnvGeminiKeyOrder(t *testing.T) {
	for range 50 {
		cfg := Default()
		cfg.SetProviderKey("gemini", "from-file")
		if err := cfg.ApplyEnv([]string{"GOOGLE_API_KEY=goog", "GEMINI_API_KEY=gem"}); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		if got := cfg.ProviderKey("gemini"); got != "gem" {
			t.Fatalf("ProviderKey(gemini) = %q, want GEMINI_API_KEY", got)
		}
	}

	cfg := Default()
	if err := cfg.ApplyEnv([]string{"GOOGLE_API_KEY=goog"}); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if got := cfg.ProviderKey("gemini"); got != "goog" {
		t.Fatalf("ProviderKey(gemini) = %q, want GOOGLE_API_KEY fallback", got)
	}
}

func TestApplyEnvPrefixedProviderKeyWins(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv([]string{"OPENAI_API_KEY=bare", "PETALTOOLS_PROVIDER_OPENAI_API_KEY=prefixed"}); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.ProviderKey("openai") != "prefixed" {
		t.Fatalf("ProviderKey() = %q, want prefixed", cfg.ProviderKey("openai"))
	}
}

func TestApplyEnvInvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv([]string{"PETALTOOLS_PORT=abc", "PETALTOOLS_DISPATCH_TIMEOUT=soon"})
	if err == nil {
		t.Fatal("ApplyEnv() error = nil")
	}
	for _, want := range []string{"PETALTOOLS_PORT", "PETALTOOLS_DISPATCH_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not name %s", err, want)
		}
	}
}

func TestApplyEnvIgnoresEmptyValues(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv([]string{"PETALTOOLS_COERCION=", "PETALTOOLS_PORT= ", "PETALTOOLS_LOG_LEVEL="}); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Dispatch.Coercion != "permissive" || cfg.Server.Port != 8000 || cfg.Logging.Level != "info" {
		t.Fatalf("empty variables changed config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.Coercion = "lenient"
	cfg.Server.Port = 70000
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"dispatch.coercion", "server.port", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestSecretLookupPrefersEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Secrets = map[string]string{"WEATHER_API_KEY": "from-file", "OTHER_KEY": "file-only"}
	t.Setenv("PETALTOOLS_SECRET_WEATHER_API_KEY", "from-env")

	lookup := cfg.SecretLookup()
	if v, ok := lookup("WEATHER_API_KEY"); !ok || v != "from-env" {
		t.Fatalf("lookup(WEATHER_API_KEY) = %q, %v", v, ok)
	}
	if v, ok := lookup("OTHER_KEY"); !ok || v != "file-only" {
		t.Fatalf("lookup(OTHER_KEY) = %q, %v", v, ok)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("ParseLevel(loud) error = nil")
	}
}
