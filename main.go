package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is ready

	"regimetrader/config"
	"regimetrader/internal/adapters/alpaca"
	"regimetrader/internal/adapters/commentary"
	"regimetrader/internal/adapters/flowapi"
	"regimetrader/internal/adapters/logger"
	"regimetrader/internal/adapters/notify"
	"regimetrader/internal/adapters/sqlite"
	"regimetrader/internal/app"
	"regimetrader/internal/ports"
	"regimetrader/internal/reports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Market Data Provider (Alpaca Adapter)
	quoteProvider, err := alpaca.New(appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data provider")
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	appLogger.Info(context.Background(), "Market data provider initialized")

	// 5. Initialize Flow Provider
	flowClient, err := flowapi.New(cfg.FlowAPIURL, cfg.FlowAPITimeout, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize flow API client")
		log.Fatalf("FATAL: Failed to initialize flow API client: %v", err)
	}
	appLogger.Info(context.Background(), "Flow API client initialized")

	// 6. Initialize Report Source (optional)
	var reportSource ports.ReportSource
	if cfg.ReportsDir != "" {
		src, err := reports.NewDirSource(cfg.ReportsDir)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize report source")
			log.Fatalf("FATAL: Failed to initialize report source: %v", err)
		}
		reportSource = src
		appLogger.Info(context.Background(), "Report source initialized", map[string]interface{}{"dir": cfg.ReportsDir})
	}

	// 7. Initialize Notifier and Commentator (both degrade to no-ops when
	// unconfigured)
	discord := notify.NewDiscord(cfg.DiscordWebhookURL)
	commentator := commentary.New(cfg.CommentaryURL, cfg.CommentaryAPIKey)

	// 8. Initialize Application Service
	tradingService, err := app.NewService(app.Deps{
		Config:      cfg,
		Logger:      appLogger,
		Quotes:      quoteProvider,
		Flow:        flowClient,
		Ledger:      repo,
		States:      repo,
		Snapshots:   repo,
		OpLog:       repo,
		Notifier:    discord,
		Commentator: commentator,
		Reports:     reportSource,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// 9. Start the Service
	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
