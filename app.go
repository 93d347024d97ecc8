package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/config"
	"github.com/ekaya-inc/ekaya-askdata/pkg/database"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/repositories"
	"github.com/ekaya-inc/ekaya-askdata/pkg/services/agent"
)

// app holds the wired collaborators shared by the serve and chat commands.
type app struct {
	adapter      datasource.Adapter
	introspector datasource.SchemaIntrospector
	orchestrator *agent.Orchestrator

	closers []func()
}

// newApp connects the datasource, the session store and the LLM, and wires
// the orchestrator. Call Close when done.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	adapter, err := openDatasource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.adapter = adapter
	a.closers = append(a.closers, func() {
		if err := adapter.Close(); err != nil {
			logger.Warn("Failed to close datasource", zap.Error(err))
		}
	})

	a.introspector = adapter
	if cfg.Agent.SchemaCacheTTL > 0 {
		a.introspector = datasource.NewCachingIntrospector(adapter, cfg.Agent.SchemaCacheTTL, logger)
	}

	store, closeStore, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	completion, err := llm.NewCompletionService(cfg.LLM.Provider, &llm.Config{
		Endpoint:    cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create completion service: %w", err)
	}

	a.orchestrator, err = agent.NewOrchestrator(agent.Config{
		LLM:            completion,
		Executor:       adapter,
		Introspector:   a.introspector,
		Store:          store,
		Dialect:        adapter.Dialect(),
		Auditor:        audit.NewSecurityAuditor(logger),
		RequestTimeout: cfg.Agent.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openDatasource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datasource.Adapter, error) {
	factory := datasource.NewDatasourceAdapterFactory(logger)
	adapter, err := factory.NewAdapter(ctx, cfg.Datasource.Type, cfg.Datasource.Settings())
	if err != nil {
		return nil, err
	}
	if err := adapter.TestConnection(ctx); err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("failed to connect to %s datasource: %w", cfg.Datasource.Type, err)
	}
	logger.Info("Datasource connected",
		zap.String("type", cfg.Datasource.Type),
		zap.String("dialect", adapter.Dialect()))
	return adapter, nil
}

// openSessionStore returns the configured store and a function releasing its connection.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SessionStore, func(), error) {
	switch cfg.SessionStore.Type {
	case "postgres":
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to session database: %w", err)
		}
		if err := db.Migrate(cfg.Database.MigrationsPath, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate session database: %w", err)
		}
		logger.Info("Using PostgreSQL session store",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
		return repositories.NewPostgresSessionStore(db.Pool), db.Close, nil

	case "redis":
		client, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Using Redis session store",
			zap.String("addr", cfg.Redis.Addr()),
			zap.Duration("ttl", cfg.SessionStore.TTL))
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return repositories.NewRedisSessionStore(client, cfg.SessionStore.TTL), closeClient, nil

	default:
		return repositories.NewMemorySessionStore(), func() {}, nil
	}
}
