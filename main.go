package main

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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/config"
	"github.com/ekaya-inc/ekaya-askdata/pkg/handlers"
	"github.com/ekaya-inc/ekaya-askdata/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdata/pkg/mcp"
	"github.com/ekaya-inc/ekaya-askdata/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdata/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ekaya-askdata",
		Short:         "Answer natural-language questions about a SQL database.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "YAML configuration file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newChatCmd(&configPath),
		newSchemaCmd(&configPath),
	)
	return rootCmd
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("datasource", cfg.Datasource.Type),
		zap.String("session_store", cfg.SessionStore.Type))

	metrics.BuildInfo.WithLabelValues(cfg.Version).Set(1)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, app.adapter, logger).RegisterRoutes(mux)
	handlers.NewThreadsHandler(app.orchestrator, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(app.introspector, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	auditor := mcp.NewToolCallAuditor(logger)
	mcpServer := mcp.NewServer("ekaya-askdata", cfg.Version, auditor.Hooks(), logger)
	tools.RegisterHealthTool(mcpServer.MCP(), tools.HealthInfo{
		Version: cfg.Version,
		Dialect: app.adapter.Dialect(),
		Model:   cfg.LLM.Model,
	}, app.adapter)
	tools.RegisterConversationTools(mcpServer.MCP(), &tools.ConversationToolDeps{
		Conversation: app.orchestrator,
		Logger:       logger,
	})
	tools.RegisterSchemaTool(mcpServer.MCP(), app.introspector)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
