package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wjlander/dash-free-display/internal/api"
	appauth "github.com/wjlander/dash-free-display/internal/auth"
	"github.com/wjlander/dash-free-display/internal/config"
	"github.com/wjlander/dash-free-display/internal/google"
	"github.com/wjlander/dash-free-display/internal/homeassistant"
	httpserver "github.com/wjlander/dash-free-display/internal/http"
	"github.com/wjlander/dash-free-display/internal/screens"
	"github.com/wjlander/dash-free-display/internal/store"
)

func main() {
	log.Println("Starting dash-free-display server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	sessionManager := appauth.NewSessionManager(cfg)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	tokens := google.NewTokenProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, stor.GoogleCredentials)
	oauthFlow := google.NewOAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.GoogleRedirectURI())
	calendar := google.NewCalendarClient(tokens)

	haManager := homeassistant.NewManager(homeassistant.SyncOptions{
		BackoffMin:       cfg.Sync.BackoffMin,
		BackoffMax:       cfg.Sync.BackoffMax,
		FailureThreshold: cfg.Sync.FailureThreshold,
	})
	haManager.OnSessionDown = func(userID int64, err error) {
		dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if dbErr := stor.HomeAssistant.SetConnected(dbCtx, userID, false, nil); dbErr != nil {
			log.Printf("[ERROR] failed to mark home assistant disconnected for user %d: %v", userID, dbErr)
		}
	}

	resumeHASessions(ctx, stor, haManager)

	handler := &api.Handler{
		Cfg:      cfg,
		Store:    stor,
		Auth:     authService,
		Screens:  screens.NewService(stor.Screens),
		Calendar: calendar,
		OAuth:    oauthFlow,
		HA:       haManager,
	}

	r := httpserver.NewRouter(cfg, stor, authService, handler)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// resumeHASessions re-establishes the live entity sync for every user whose
// Home Assistant connection was up before the last restart. Failures are
// logged and the connection marked down; the user reconnects from settings.
func resumeHASessions(ctx context.Context, stor *store.Store, manager *homeassistant.Manager) {
	conns, err := stor.HomeAssistant.ListConnected(ctx)
	if err != nil {
		log.Printf("[ERROR] failed to list home assistant connections: %v", err)
		return
	}

	for _, conn := range conns {
		if _, err := manager.Connect(ctx, conn.UserID, conn.BaseURL, conn.AccessToken); err != nil {
			log.Printf("[WARN] could not resume home assistant sync for user %d: %v", conn.UserID, err)
			if dbErr := stor.HomeAssistant.SetConnected(ctx, conn.UserID, false, nil); dbErr != nil {
				log.Printf("[ERROR] failed to mark home assistant disconnected for user %d: %v", conn.UserID, dbErr)
			}
			continue
		}
		log.Printf("[INFO] resumed home assistant sync for user %d", conn.UserID)
	}
}
