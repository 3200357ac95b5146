package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/config"
	"github.com/homebrew-hq/homebrew-engine/pkg/database"
	"github.com/homebrew-hq/homebrew-engine/pkg/handlers"
	"github.com/homebrew-hq/homebrew-engine/pkg/llm"
	"github.com/homebrew-hq/homebrew-engine/pkg/logging"
	"github.com/homebrew-hq/homebrew-engine/pkg/mcp"
	mcpauth "github.com/homebrew-hq/homebrew-engine/pkg/mcp/auth"
	mcptools "github.com/homebrew-hq/homebrew-engine/pkg/mcp/tools"
	"github.com/homebrew-hq/homebrew-engine/pkg/middleware"
	"github.com/homebrew-hq/homebrew-engine/pkg/repositories"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
	"github.com/homebrew-hq/homebrew-engine/pkg/services"
	"github.com/homebrew-hq/homebrew-engine/pkg/telemetry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("homebrew-engine stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("ai_enabled", cfg.AI.Enabled()))

	shutdownTracing, err := telemetry.Setup(ctx, &cfg.Telemetry, cfg.Version, logger)
	if err != nil {
		logger.Warn("Tracing unavailable", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	registry, err := loadRegistry(cfg.Schema.Path)
	if err != nil {
		return err
	}

	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Migrations.Run {
		sqlDB := db.SQLDB()
		err := database.RunMigrations(sqlDB, cfg.Migrations.Path, logger)
		_ = sqlDB.Close()
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("create JWKS client: %w", err)
	}
	defer jwksClient.Close()
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	records := repositories.NewRecordRepository(db, cfg.Query.StatementTimeout)
	auditor := audit.NewSecurityAuditor(logger)
	dispatcher := services.NewQueryDispatcher(registry, records, auditor, cfg.Query.MaxRows, logger)
	schemaService := services.NewSchemaService(registry)

	chatClient, err := newChatClient(cfg, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db.Ping, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(schemaService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQueryHandler(dispatcher, logger).
		RegisterRoutes(mux, authMiddleware, database.WithTenantContext(db, logger))
	handlers.NewChatHandler(chatClient, registry, dispatcher, logger).RegisterRoutes(mux, authMiddleware)

	mcpServer := mcp.NewServer("homebrew-engine", cfg.Version, mcp.NewToolCallLogger(logger), logger)
	mcptools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, db.Ping)
	mcptools.RegisterQueryTools(mcpServer.MCP(), &mcptools.QueryToolDeps{
		Registry: registry,
		Runner:   dispatcher,
		Logger:   logger,
	})
	mux.Handle("/mcp", mcpauth.NewMiddleware(authService, logger).RequireAuth(mcpServer.NewStreamableHTTPServer()))

	handler := otelhttp.NewHandler(middleware.RequestLogger(logger)(mux), "homebrew-engine")

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting homebrew-engine",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.HomeBrew(), nil
	}
	registry, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema registry %s: %w", path, err)
	}
	return registry, nil
}

// newChatClient returns nil without error when no provider key is set, which
// disables /api/chat.
func newChatClient(cfg *config.Config, logger *zap.Logger) (llm.ChatClient, error) {
	client, err := llm.NewChatClient(&llm.Config{
		Provider:          cfg.AI.Provider,
		BaseURL:           cfg.AI.BaseURL,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		Temperature:       cfg.AI.Temperature,
		MaxTokens:         cfg.AI.MaxTokens,
		MaxToolIterations: cfg.AI.MaxToolIterations,
	}, logger)
	if errors.Is(err, apperrors.ErrNoProvider) && !cfg.AI.Enabled() {
		logger.Warn("Chat disabled: AI_API_KEY is not set")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return client, nil
}
