package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/krishnavp/billflow/internal/config"
	httpadapter "github.com/krishnavp/billflow/internal/interfaces/http"
	"github.com/krishnavp/billflow/internal/report"
	"github.com/krishnavp/billflow/internal/repository"
	"github.com/krishnavp/billflow/internal/service"
	"github.com/krishnavp/billflow/internal/worker"
	"github.com/krishnavp/billflow/internal/workflow"
	"github.com/krishnavp/billflow/pkg/database"
	"github.com/krishnavp/billflow/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env if present, then the config file
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bill workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	billRepo := repository.NewBillRepository(db.DB, logger)
	transitionRepo := repository.NewTransitionRepository(db.DB, logger)
	vendorRepo := repository.NewVendorRepository(db.DB, logger)

	// Workflow core
	access := workflow.DefaultAccessConfig()
	engine := workflow.NewEngine(workflow.NewRuleTable(), billRepo, transitionRepo, access, logger)

	// Services and projections
	billService := service.NewBillService(billRepo, vendorRepo, access, logger)
	projector := report.NewProjector(db.DB, billRepo, access, logger)

	// Background workers
	workerManager := worker.NewManager(logger)
	workerManager.Register(worker.NewStuckBillMonitor(
		engine,
		cfg.Workflow.StuckCheckInterval,
		cfg.Workflow.StuckThresholdDays,
		logger,
	))

	// HTTP server
	httpLogger := utils.NewKVLogger(logger)
	handlers := httpadapter.NewHandlers(engine, billService, projector, cfg.Workflow.StuckThresholdDays, httpLogger)
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, httpLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// Blocks until the context is cancelled or the listener fails
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server terminated with error", zap.Error(err))
	}

	workerManager.StopAll()
	logger.Info("Server exited successfully")
}
