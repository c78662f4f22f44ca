package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petaltools/builtins"
	"github.com/petal-labs/petaltools/config"
	"github.com/petal-labs/petaltools/llmprovider"
	"github.com/petal-labs/petaltools/orchestrate"
	"github.com/petal-labs/petaltools/tool"
)

// app holds the components every command works against.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	router     *orchestrate.Router
}

// loadConfig resolves settings from file, environment, and flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	path, _, err := config.DiscoverPath(explicitPath)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return config.Config{}, exitError(exitConfig, "environment: %v", err)
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitConfig, "invalid configuration: %v", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("tools-dir"); v != "" {
		cfg.Tools.Dir = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	if quiet, _ := flags.GetBool("quiet"); quiet {
		cfg.Logging.Level = "error"
	}
	if v, _ := flags.GetString("provider"); v != "" {
		cfg.Orchestrate.Provider = v
	}
	if v, _ := flags.GetString("model"); v != "" {
		cfg.Orchestrate.Model = v
	}
	if v, _ := flags.GetString("coercion"); v != "" {
		cfg.Dispatch.Coercion = v
	}
	keys, _ := flags.GetStringArray("provider-key")
	for _, entry := range keys {
		name, key, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(key) == "" {
			return exitError(exitProvider, "invalid provider-key format %q: expected name=key", entry)
		}
		cfg.SetProviderKey(name, strings.TrimSpace(key))
	}
	return nil
}

// loadApp builds the registry, dispatcher, and router for a command.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	builtinSource, err := builtins.Source(builtins.Config{
		Enabled:        cfg.Tools.Builtins,
		WeatherBaseURL: cfg.Tools.WeatherURL,
		MarketBaseURL:  cfg.Tools.MarketDataURL,
	})
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	toolsDir, required := cfg.ToolsDir()
	registry, err := tool.Discover(ctx, logger, builtinSource, tool.NewDirectorySource(toolsDir, required))
	if err != nil {
		return nil, exitError(exitConfig, "discovering tools: %v", err)
	}

	dispatcher, err := tool.NewDispatcher(tool.DispatcherConfig{
		Registry: registry,
		Policy:   tool.CoercionPolicy(cfg.Dispatch.Coercion),
		Secrets:  cfg.SecretLookup(),
		Timeout:  cfg.Dispatch.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	model, err := llmprovider.New(ctx, llmprovider.Config{
		Provider:    cfg.Orchestrate.Provider,
		Model:       cfg.Orchestrate.Model,
		APIKey:      cfg.ProviderKey(cfg.Orchestrate.Provider),
		Temperature: cfg.Orchestrate.Temperature,
		MaxTokens:   cfg.Orchestrate.MaxTokens,
	})
	if err != nil {
		return nil, exitError(exitProvider, "%v", err)
	}
	if model == nil {
		logger.Debug("no language model configured; natural-language routing disabled",
			"provider", cfg.Orchestrate.Provider)
	}
	router, err := orchestrate.NewRouter(orchestrate.RouterConfig{
		Dispatcher: dispatcher,
		Model:      model,
		Retry:      cfg.Orchestrate.Retry,
		Timeout:    cfg.Orchestrate.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		dispatcher: dispatcher,
		router:     router,
	}, nil
}
