package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizforge/internal/api"
	"quizforge/internal/api/handlers"
	"quizforge/internal/config"
	"quizforge/internal/db"
	"quizforge/internal/llm"
	"quizforge/internal/logger"
	"quizforge/internal/monitoring"
	"quizforge/internal/pipeline"
	"quizforge/internal/r2"
	"quizforge/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	gsessions "github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

const (
	storeName    = "quizforge_session"
	sessionTTL   = 24 * time.Hour
	sweepEvery   = 10 * time.Minute
	shutdownWait = 5 * time.Second
)

func main() {
	envLoaded, envErr := config.LoadDotEnv()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.File)
	if err != nil {
		log.Fatalf("FATAL: failed to init logger: %v", err)
	}
	defer logg.Sync()

	switch {
	case envErr != nil:
		logg.Fatal("error loading .env file", "error", envErr)
	case envLoaded:
		logg.Info(".env file loaded")
	default:
		logg.Warn(".env file not found, relying on system environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := llm.New(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("failed to initialize model provider", "error", err)
	}
	defer provider.Close()

	metrics := monitoring.NewMetrics()
	pipe, err := pipeline.New(cfg, provider.Embedder, provider.Generator, metrics, logg)
	if err != nil {
		logg.Fatal("failed to build pipeline", "error", err)
	}

	// Optional quiz archive.
	var archive handlers.Archive
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	switch {
	case errors.Is(err, db.ErrNoDatabase):
		logg.Warn("DATABASE_URL not set, quiz archive disabled")
	case err != nil:
		logg.Fatal("failed to connect to database", "error", err)
	default:
		defer database.Close()
		archive = database.Quizzes
	}

	// Optional publishing.
	var publisher handlers.Publisher
	r2Client, err := r2.NewClient(ctx, cfg.R2, logg)
	if err != nil {
		logg.Fatal("failed to initialize R2 client", "error", err)
	}
	if r2Client != nil {
		publisher = r2Client
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()

	store, closeStore := sessionStore(cfg, logg)
	defer closeStore()
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
		Secure:   cfg.Server.Mode == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(storeName, store))

	registry := session.NewRegistry(sessionTTL)
	go sweepSessions(ctx, registry, logg)

	handler := handlers.NewHandler(cfg, pipe, registry, archive, publisher, logg)
	api.SetupRoutes(router, handler, cfg, metrics)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logg.Info("server listening", "port", cfg.Server.Port, "provider", cfg.Provider, "model", cfg.ModelName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownWait)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
		return
	}
	logg.Info("server exited properly")
}

// sessionStore keeps cookie sessions in Postgres when a database is
// configured and in the signed cookie itself otherwise.
func sessionStore(cfg *config.Config, logg *logger.Logger) (sessions.Store, func()) {
	secret := []byte(cfg.Server.SessionSecret)
	if len(secret) == 0 {
		logg.Warn("SESSION_SECRET not set, using a random key; sessions will not survive restarts")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logg.Fatal("failed to generate session key", "error", err)
		}
	}

	if cfg.DatabaseURL == "" {
		return cookie.NewStore(secret), func() {}
	}

	sessionDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logg.Fatal("failed to open database connection for session store", "error", err)
	}
	if err := sessionDB.Ping(); err != nil {
		logg.Fatal("failed to ping database for session store", "error", err)
	}
	store, err := gsessions.NewStore(sessionDB, secret)
	if err != nil {
		logg.Fatal("failed to create postgres session store", "error", err)
	}
	return store, func() { sessionDB.Close() }
}

func sweepSessions(ctx context.Context, registry *session.Registry, logg *logger.Logger) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(); n > 0 {
				logg.Info("expired sessions removed", "removed", n, "active", registry.Len())
			}
		}
	}
}
