package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"marketing-studio/internal/config"
	"marketing-studio/internal/gateway"
	"marketing-studio/internal/httpclient"
	"marketing-studio/internal/session"
	"marketing-studio/internal/studio"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; relay calls will fail with a configuration error")
	}

	vendorClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	relay := gateway.New(gateway.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIAPIBase,
		HTTPClient: vendorClient,
		Logger:     logger,
	})

	// The orchestrator reaches the vendor through the relay above.
	studioClient := httpclient.New(httpclient.Options{
		Timeout: cfg.HTTPTimeout,
	})

	orchestrator := studio.New(studio.Options{
		Upstream:   studio.NewUpstream(cfg.StudioAPIBase, studioClient),
		ChatModel:  cfg.ChatModel,
		ImageModel: cfg.ImageModel,
		Mode:       studio.Mode(cfg.AnalysisMode),
		Parallel:   cfg.AnalysisParallel,
		Logger:     logger,
	})

	sessions := session.NewStore(session.Options{
		TTL:      cfg.SessionTTL,
		Analyzer: orchestrator,
		Logger:   logger,
	})

	router := newRouter(relay, newStudioAPI(sessions, cfg.RequestTimeout, logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(router, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("web started",
		"addr", srv.Addr,
		"studio_api_base", cfg.StudioAPIBase,
		"analysis_mode", cfg.AnalysisMode,
		"analysis_parallel", cfg.AnalysisParallel,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func newRouter(relay *gateway.Relay, api *studioAPI) *mux.Router {
	r := mux.NewRouter()
	r.Use(enableCORS)

	gateway.Register(r, relay)
	api.register(r.PathPrefix("/api/studio").Subrouter())

	// Preflight requests never reach a method-bound route.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
