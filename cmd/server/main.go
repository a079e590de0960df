package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashani/stock-screener/internal/clients/yahoo"
	"github.com/ashani/stock-screener/internal/config"
	"github.com/ashani/stock-screener/internal/database"
	"github.com/ashani/stock-screener/internal/modules/universe"
	"github.com/ashani/stock-screener/internal/modules/valuation"
	"github.com/ashani/stock-screener/internal/scheduler"
	"github.com/ashani/stock-screener/internal/server"
	"github.com/ashani/stock-screener/pkg/logger"
)

// Default schedules for background runs. References drift slowly; screens
// track the market more closely.
const (
	referenceRefreshSchedule = "0 7 * * SUN"
	screeningSchedule        = "0 18 * * MON-FRI"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting stock screener")

	// Initialize database
	db, err := database.New(database.Config{
		Path: cfg.DataDir + "/screener.db",
		Name: "screener",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// Market data client
	marketData := yahoo.NewClient(cfg.TrailingWindowYears, cfg.RateLimitCooldown, log)

	// Universe module
	stockRepo := universe.NewStockRepository(db.Conn(), log)
	downloader := universe.NewIndexDownloader(cfg.CSVDir, log)
	csvLoader := universe.NewCSVLoader(cfg.CSVDir, stockRepo, log)
	universeHandlers := universe.NewUniverseHandlers(downloader, csvLoader, stockRepo, log)

	// Valuation module
	refRepo := valuation.NewReferenceRepository(db.Conn(), log)
	snapRepo := valuation.NewSnapshotRepository(db.Conn(), log)
	calculator := valuation.NewCalculator(cfg.TrailingWindowYears)
	refService := valuation.NewReferenceService(stockRepo, marketData, calculator, refRepo,
		cfg.DiscountThresholdPct, log)
	screenerService := valuation.NewScreenerService(marketData, refRepo, snapRepo, log)
	valuationHandlers := valuation.NewValuationHandlers(refService, screenerService,
		refRepo, snapRepo, log)

	// Background jobs, opt-in via SCHEDULE_ENABLED
	sched := scheduler.New(log)
	if cfg.ScheduleEnabled {
		refreshJob := scheduler.NewReferenceRefreshJob(refService, log)
		if err := sched.AddJob(referenceRefreshSchedule, refreshJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register reference refresh job")
		}

		screeningJob := scheduler.NewScreeningJob(screenerService, log)
		if err := sched.AddJob(screeningSchedule, screeningJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register screening job")
		}

		sched.Start()
		defer sched.Stop()
	}

	// HTTP server
	srv := server.New(server.Config{
		Log:               log,
		DB:                db,
		Config:            cfg,
		UniverseHandlers:  universeHandlers,
		ValuationHandlers: valuationHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
