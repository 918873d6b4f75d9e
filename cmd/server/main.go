package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"
	"github.com/taskpilot/assistant-api/internal/cache"
	"github.com/taskpilot/assistant-api/internal/chat"
	"github.com/taskpilot/assistant-api/internal/config"
	"github.com/taskpilot/assistant-api/internal/corpus"
	"github.com/taskpilot/assistant-api/internal/db"
	"github.com/taskpilot/assistant-api/internal/handlers"
	"github.com/taskpilot/assistant-api/internal/initialization"
	"github.com/taskpilot/assistant-api/internal/intent"
	"github.com/taskpilot/assistant-api/internal/llm"
	"github.com/taskpilot/assistant-api/internal/logging"
	"github.com/taskpilot/assistant-api/internal/metrics"
	"github.com/taskpilot/assistant-api/internal/middleware"
	"github.com/taskpilot/assistant-api/internal/nlquery"
	"github.com/taskpilot/assistant-api/internal/weather"
)

func main() {
	// Load .env if present; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting assistant API server", nil)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", err, nil)
		os.Exit(1)
	}

	// Connect to database
	store, err := db.Open(cfg.Database.DSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		logger.Error("Failed to connect to database", err, nil)
		os.Exit(1)
	}
	defer store.Close()

	logger.Info("Connected to database", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
		"name": cfg.Database.Name,
	})

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Training corpus backed by Postgres and a persistent vector store
	embed := chromem.NewEmbeddingFuncOpenAICompat(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, nil)
	corpusStore, err := corpus.NewStore(initCtx, store.DB(), cfg.Corpus.DataDir, embed)
	if err != nil {
		logger.Error("Failed to open training corpus", err, nil)
		os.Exit(1)
	}

	bootstrap := initialization.NewBootstrap(store, corpusStore, cfg.Corpus.SeedFile, logger)
	if err := bootstrap.Initialize(initCtx); err != nil {
		logger.Error("Failed to bootstrap application", err, nil)
		os.Exit(1)
	}

	// Shared caches, mutated by every session
	commandCache := cache.NewStore[string](cfg.Cache.CommandTTL)
	queryCache := cache.NewStore[nlquery.StructuredResult](cfg.Cache.QueryTTL)

	// External engines
	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.RequestTimeout)
	weatherClient := weather.NewClient(cfg.Weather.APIKey, cfg.Weather.GeoURL, cfg.Weather.WeatherURL, cfg.Weather.RequestTimeout)

	// NL2Query pipeline
	generator := nlquery.NewLLMGenerator(llmClient, corpusStore, db.TaskSchemaDDL)
	explainer := nlquery.NewLLMExplainer(llmClient)
	executor := nlquery.NewExecutor(generator, store, explainer, commandCache, queryCache, logger)

	// Intent cascade; registration order breaks confidence ties
	cascade := intent.NewCascade(
		intent.NewWeatherRecognizer(),
		intent.NewTimeRecognizer(),
		intent.NewDatabaseQueryRecognizer(),
	)

	dispatcher := chat.NewDispatcher(cascade, executor, weatherClient, llmClient, logger)

	// Handlers
	chatHandlers := handlers.NewChatHandlers(dispatcher, logger)
	systemHandlers := handlers.NewSystemHandlers(store, logger)
	trainingHandlers := handlers.NewTrainingHandlers(corpusStore, logger)
	metricsHandlers := handlers.NewMetricsHandlers()

	rateLimiter := middleware.NewRateLimiter(1000, 1*time.Minute)
	defer rateLimiter.Stop()

	// Setup router
	router := mux.NewRouter()

	// Apply middleware (order matters)
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RequestSizeMiddleware(1 << 20))

	// Streaming chat endpoint
	router.HandleFunc("/ws", chatHandlers.HandleWebSocket).Methods("GET")

	// Prometheus metrics (no rate limit)
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// REST surface
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.RateLimitMiddleware(rateLimiter))

	apiRouter.HandleFunc("/current-time", systemHandlers.GetCurrentTime).Methods("GET")
	apiRouter.HandleFunc("/health", systemHandlers.GetHealth).Methods("GET")
	apiRouter.HandleFunc("/system", systemHandlers.GetSystemMetrics).Methods("GET")

	apiRouter.HandleFunc("/training", trainingHandlers.ListTraining).Methods("GET")
	apiRouter.HandleFunc("/training", trainingHandlers.AddTraining).Methods("POST")
	apiRouter.HandleFunc("/training/{id}", trainingHandlers.DeleteTraining).Methods("DELETE")

	apiRouter.HandleFunc("/metrics", metricsHandlers.GetMetrics).Methods("GET")
	apiRouter.HandleFunc("/metrics/reset", metricsHandlers.ResetMetrics).Methods("POST")

	// CORS handler wrapper
	//
	// Important: we wrap the router at the HTTP handler level (instead of router.Use),
	// so CORS headers and OPTIONS preflight responses work even when gorilla/mux would
	// otherwise return 404 for method-mismatches (e.g. OPTIONS on a GET-only route).
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades need direct access to the underlying connection
		// (Hijacker interface) so we bypass the CORS wrapper for them
		if r.Header.Get("Upgrade") == "websocket" {
			router.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		allowed := false
		allowAll := false

		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowAll = true
				allowed = true
				break
			} else if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
		}
		if allowed && (!allowAll || origin != "") {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowedHeaders, ", "))

		// Preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		router.ServeHTTP(w, r)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address": addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
	}

	logger.Info("Server stopped", nil)
}
