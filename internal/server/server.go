package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/tickertap/tickertap/internal/config"
	"github.com/tickertap/tickertap/internal/database"
	"github.com/tickertap/tickertap/internal/modules/charts"
	"github.com/tickertap/tickertap/internal/modules/quotes"
	"github.com/tickertap/tickertap/internal/modules/transactions"
	"github.com/tickertap/tickertap/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DB      *database.DB
	Config  *config.Config
	DevMode bool

	Session             *scheduler.MarketSessionService
	ChartHandlers       *charts.Handlers
	QuoteHandlers       *quotes.Handlers
	TransactionHandlers *transactions.Handlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	cfg    *config.Config

	session      *scheduler.MarketSessionService
	charts       *charts.Handlers
	quotes       *quotes.Handlers
	transactions *transactions.Handlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		db:           cfg.DB,
		cfg:          cfg.Config,
		session:      cfg.Session,
		charts:       cfg.ChartHandlers,
		quotes:       cfg.QuoteHandlers,
		transactions: cfg.TransactionHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// System
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		// Market session
		r.Get("/market/status", s.handleMarketStatus)

		// Charts
		r.Route("/charts", func(r chi.Router) {
			r.Get("/{symbol}", s.charts.HandleGetChart)
			r.Get("/{symbol}/stats", s.charts.HandleGetStats)
		})

		// Live quotes
		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", s.quotes.HandleGetQuotes)
			r.Post("/watch", s.quotes.HandleWatch)
			r.Delete("/watch", s.quotes.HandleUnwatch)
		})

		// Transactions and derived holdings
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.transactions.HandleList)
			r.Post("/", s.transactions.HandleCreate)
			r.Get("/{id}", s.transactions.HandleGet)
			r.Put("/{id}", s.transactions.HandleUpdate)
			r.Delete("/{id}", s.transactions.HandleDelete)
		})
		r.Get("/holdings", s.transactions.HandleHoldings)

		// Simulated orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.transactions.HandleListOrders)
			r.Post("/", s.transactions.HandlePlaceOrder)
			r.Post("/{id}/cancel", s.transactions.HandleCancelOrder)
		})

		// CSV import
		r.Route("/import", func(r chi.Router) {
			r.Post("/preview", s.transactions.HandleImportPreview)
			r.Post("/commit", s.transactions.HandleImportCommit)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
