package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/adapters/analytics/duckdb"
	"github.com/vlrscout/scout-engine/pkg/adapters/analytics/postgres"
	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/config"
	"github.com/vlrscout/scout-engine/pkg/database"
	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/repositories"
	"github.com/vlrscout/scout-engine/pkg/services"
	"github.com/vlrscout/scout-engine/pkg/workerpool"
)

// app holds the wired services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	executor  analytics.Executor
	llm       llm.LLMClient
	assistant *services.ScoutingAssistant
	scouting  services.ScoutingService
	reports   services.ReportService

	closers []func()
}

// newLogger builds the root logger: JSON production output, or the console
// development encoder when env is "local".
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.LoadDefault()
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

// newApp loads the catalog, opens the match database and wires the services.
// A catalog that fails validation is fatal.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema catalog: %w", err)
	}
	a.catalog = cat
	metrics.BuildInfo.WithLabelValues(cfg.Version, cat.Version()).Set(1)

	if err := a.openExecutor(ctx); err != nil {
		a.Close()
		return nil, err
	}

	client, err := llm.NewFromConfig(&llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, llm.GuardedConfig{GenerationTimeout: cfg.LLM.GenerationTimeout}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.llm = client

	a.wireServices()
	return a, nil
}

func (a *app) openExecutor(ctx context.Context) error {
	dbCfg := a.cfg.Database

	switch dbCfg.Driver {
	case config.DriverDuckDB:
		exec, err := duckdb.Open(ctx, dbCfg.DuckDBDSN(), a.logger)
		if err != nil {
			return fmt.Errorf("failed to open duckdb: %w", err)
		}
		a.executor = exec
		a.closers = append(a.closers, func() { _ = exec.Close() })
		return nil

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.NewConnection(connectCtx, &database.Config{
			URL:            dbCfg.ConnectionString(),
			MaxConnections: dbCfg.MaxConnections,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if dbCfg.RunMigrations {
			sqlDB := stdlib.OpenDBFromPool(db.Pool)
			err := database.RunMigrations(sqlDB, a.logger)
			_ = sqlDB.Close()
			if err != nil {
				return err
			}
		}

		a.executor = postgres.NewExecutor(db.Pool, dbCfg.PoolAcquireTimeout, a.logger)
		return nil
	}
}

func (a *app) wireServices() {
	cfg := a.cfg
	logger := a.logger

	auditor := audit.NewSecurityAuditor(logger)
	repo := repositories.NewScoutingRepository(a.executor)
	teams := services.NewTeamDirectory(repo, cfg.Engine.TeamCacheTTL, logger)

	var proposer *services.SQLProposer
	if a.llm != nil && cfg.Planner.LLMSQL {
		proposer = services.NewSQLProposer(a.catalog, a.llm, auditor, logger)
	}
	var proseClient llm.LLMClient
	if cfg.Interpreter.LLMProse {
		proseClient = a.llm
	}

	conversations := services.NewConversationStore(services.ConversationConfig{
		MaxTurns: cfg.Session.MaxTurns,
		IdleTTL:  cfg.Session.IdleTTL,
	})
	go conversations.Start()
	a.closers = append(a.closers, conversations.Stop)

	a.assistant = services.NewScoutingAssistant(services.AssistantDeps{
		Planner: services.NewQueryPlanner(a.catalog, services.PlannerConfig{
			MaxQuestionLength: cfg.Engine.MaxQuestionLength,
			DefaultMatches:    cfg.Engine.DefaultMatches,
			MaxMatches:        cfg.Engine.MaxMatches,
			RowCap:            cfg.Engine.RowCap,
		}),
		Proposer: proposer,
		Executor: a.executor,
		Interpreter: services.NewResultInterpreter(a.catalog, proseClient, services.InterpreterConfig{
			LLMProse: cfg.Interpreter.LLMProse,
			RowCap:   cfg.Engine.RowCap,
		}, logger),
		Suggestions:   services.NewSuggestionGenerator(a.catalog),
		Conversations: conversations,
		Teams:         teams,
		Auditor:       auditor,
	}, services.AssistantConfig{
		RowCap:           cfg.Engine.RowCap,
		StatementTimeout: cfg.Database.StatementTimeout,
		LLMSQL:           proposer != nil,
		ExposeSQL:        cfg.Engine.ExposeSQL,
	}, logger)

	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.Engine.ScoutConcurrency}, logger)
	a.scouting = services.NewScoutingService(repo, teams, pool, cfg.Engine.MaxMatches, logger)
	a.reports = services.NewReportService(a.scouting, a.llm, logger)
}

// Close stops background work and releases the database, in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
