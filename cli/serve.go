package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/petaltools/config"
	pttotel "github.com/petal-labs/petaltools/otel"
	"github.com/petal-labs/petaltools/server"
	"github.com/petal-labs/petaltools/tool"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve discovered tools over HTTP and MCP",
		Long:  "Starts the HTTP server with one endpoint per tool, POST /query for natural-language routing, and a stateless MCP endpoint at /mcp.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, version)
		},
	}

	cmd.Flags().String("host", "", "Listen host (default 127.0.0.1)")
	cmd.Flags().IntP("port", "p", 0, "Listen port (default 8000)")
	cmd.Flags().String("cors-origin", "", "CORS allowed origin")
	cmd.Flags().Int64("max-body", 0, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 0, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout")
	cmd.Flags().Bool("no-mcp", false, "Disable the /mcp endpoint")
	return cmd
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body") {
		cfg.Server.MaxBody, _ = flags.GetInt64("max-body")
	}
	if flags.Changed("read-timeout") {
		cfg.Server.ReadTimeout, _ = flags.GetDuration("read-timeout")
	}
	if flags.Changed("write-timeout") {
		cfg.Server.WriteTimeout, _ = flags.GetDuration("write-timeout")
	}
	if noMCP, _ := flags.GetBool("no-mcp"); noMCP {
		disabled := false
		cfg.Server.MCP = &disabled
	}
}

func runServe(cmd *cobra.Command, version string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg
	applyServeFlags(cmd, &cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := pttotel.Setup(ctx, pttotel.SetupConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return exitError(exitConfig, "telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	observer, err := pttotel.NewGlobalDispatchObserver()
	if err != nil {
		return exitError(exitConfig, "telemetry: %v", err)
	}
	tool.SetObserver(observer)
	defer tool.SetObserver(nil)

	srv, err := server.NewServer(server.ServerConfig{
		Dispatcher: a.dispatcher,
		Router:     a.router,
		CORSOrigin: cfg.Server.CORSOrigin,
		MaxBody:    cfg.Server.MaxBody,
		EnableMCP:  cfg.MCPEnabled(),
		Version:    version,
		Logger:     a.logger,
	})
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return exitError(exitRuntime, "listen on %s: %v", cfg.Addr(), err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	fmt.Fprintf(cmd.OutOrStdout(), "petaltools listening on %s (%d tools)\n", listener.Addr(), a.registry.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return exitError(exitRuntime, "server error: %v", err)
	}
	return nil
}
