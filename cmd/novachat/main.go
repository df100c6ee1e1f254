package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/antoniostano/novachat/internal/auth"
	"github.com/antoniostano/novachat/internal/config"
	"github.com/antoniostano/novachat/internal/httpapi"
	"github.com/antoniostano/novachat/internal/observability"
	"github.com/antoniostano/novachat/internal/relay"
	"github.com/antoniostano/novachat/internal/store"
)

func main() {
	// .env is optional; environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer backend.Close()
	if cfg.DatabaseURL != "" {
		log.Printf("store backend: postgres")
	} else {
		log.Printf("store backend: json files in %s", cfg.DataDir)
	}

	var responder relay.Responder
	if cfg.UpstreamEnabled() {
		responder = relay.NewOpenAIResponder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.UpstreamTimeout)
		log.Printf("completion upstream: %s (model %s)", cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		responder = relay.NewFallbackResponder()
		log.Printf("completion upstream: none, using canned replies (set OPENAI_API_KEY to enable)")
	}

	svc := relay.NewService(responder, backend.Sessions, backend.Users, backend.Prefs, relay.ServiceConfig{
		DefaultModel: cfg.OpenAIModel,
		DailyLimit:   cfg.SessionDailyLimit,
		Window:       24 * time.Hour,
	})

	if cfg.CookieSecret == config.DefaultCookieSecret {
		log.Printf("WARNING: NOVACHAT_COOKIE_SECRET is unset, using the development secret")
	}
	tokens := auth.NewTokenManager(cfg.CookieSecret, 0)

	api := httpapi.New(cfg, svc, backend, tokens, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
