package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/config"
	"github.com/vlrscout/scout-engine/pkg/handlers"
	"github.com/vlrscout/scout-engine/pkg/mcp"
	"github.com/vlrscout/scout-engine/pkg/mcp/tools"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("catalog_version", a.catalog.Version()),
		zap.Bool("llm_enabled", a.llm != nil),
		zap.Bool("llm_sql", cfg.Planner.LLMSQL),
		zap.Bool("llm_prose", cfg.Interpreter.LLMProse),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
	)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting scout-engine", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// newRouter registers every route and wraps the mux in the middleware chain.
func newRouter(a *app) http.Handler {
	logger := a.logger
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.executor, a.catalog.Version(), logger).RegisterRoutes(mux)
	handlers.NewAssistantHandler(a.assistant, logger).RegisterRoutes(mux)
	handlers.NewScoutingHandler(a.scouting, logger).RegisterRoutes(mux)
	handlers.NewReportHandler(a.reports, logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(a.catalog, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	if a.cfg.MCP.Enabled {
		auditLogger := mcp.NewAuditLogger(logger)
		mcpServer := mcp.NewServer("scout-engine", a.cfg.Version, auditLogger.Hooks(), logger)
		tools.RegisterHealthTool(mcpServer.MCP(), a.cfg.Version, a.executor)
		tools.RegisterScoutingTools(mcpServer.MCP(), &tools.ScoutingToolDeps{
			Assistant: a.assistant,
			Scouting:  a.scouting,
			Reports:   a.reports,
			Catalog:   a.catalog,
			Logger:    logger,
		})
		mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))
	}

	return middleware.Chain(mux,
		middleware.RequestLogger(logger),
		middleware.CORS(a.cfg.CORS.AllowedOrigins),
		middleware.ClientIP(a.cfg.TrustProxy),
		metrics.Middleware,
	)
}
