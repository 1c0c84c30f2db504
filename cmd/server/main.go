package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tickertap/tickertap/internal/clients/marketdata"
	"github.com/tickertap/tickertap/internal/config"
	"github.com/tickertap/tickertap/internal/database"
	"github.com/tickertap/tickertap/internal/domain"
	"github.com/tickertap/tickertap/internal/events"
	"github.com/tickertap/tickertap/internal/modules/charts"
	"github.com/tickertap/tickertap/internal/modules/quotes"
	"github.com/tickertap/tickertap/internal/modules/transactions"
	"github.com/tickertap/tickertap/internal/scheduler"
	"github.com/tickertap/tickertap/internal/server"
	"github.com/tickertap/tickertap/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := logger.New(logger.Config{Level: "info", Pretty: true})
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting TickerTap")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Core services
	eventManager := events.NewManager(log)
	session := scheduler.NewMarketSessionService(log)
	feed := marketdata.NewClient(cfg.MarketDataURL, log)

	// Charting
	historyCache := charts.NewHistoryCache(cfg.HistoryDir, log)
	generator := charts.NewGenerator(time.Now().UnixNano())
	chartService := charts.NewService(feed, historyCache, generator, eventManager, cfg.Charts, log)
	chartHandlers := charts.NewHandlers(chartService, log)

	// Live quotes
	poller := quotes.NewPoller(feed, session, eventManager, cfg.PollOpenInterval, cfg.PollClosedInterval, log)
	poller.OnQuote(func(q domain.Quote) {
		chartService.SetLastQuote(q.Symbol, q.Price)
	})
	defer poller.Stop()
	quoteHandlers := quotes.NewHandlers(poller, feed, log)

	// Transactions, holdings and simulated orders
	txRepo := transactions.NewRepository(db.Conn(), log)
	orderRepo := transactions.NewOrderRepository(db.Conn(), log)
	txService := transactions.NewService(txRepo, orderRepo, eventManager, poller.LatestPrice, log)
	importer := transactions.NewImportService(txService, eventManager, log)
	txHandlers := transactions.NewHandlers(txService, importer, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, chartService, txService, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:                cfg.Port,
		Log:                 log,
		DB:                  db,
		Config:              cfg,
		DevMode:             cfg.DevMode,
		Session:             session,
		ChartHandlers:       chartHandlers,
		QuoteHandlers:       quoteHandlers,
		TransactionHandlers: txHandlers,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	chartService *charts.Service,
	txService *transactions.Service,
	log zerolog.Logger,
) error {
	// Refresh history caches nightly after the close (22:30 New York is
	// past settlement for the daily bar).
	refresh := charts.NewRefreshJob(chartService, txService, log)
	return sched.AddJob("0 30 22 * * MON-FRI", refresh)
}
