package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/quipper/poc/classroom/be/internal/config"
	classroomHandler "github.com/quipper/poc/classroom/be/internal/controller/http/classroom"
	"github.com/quipper/poc/classroom/be/internal/db"
	"github.com/quipper/poc/classroom/be/internal/jobs"
	"github.com/quipper/poc/classroom/be/internal/middleware"
	notificationsSqlite "github.com/quipper/poc/classroom/be/internal/repositories/notifications/sqlite"
	rosterSqlite "github.com/quipper/poc/classroom/be/internal/repositories/roster/sqlite"
	studentsSqlite "github.com/quipper/poc/classroom/be/internal/repositories/students/sqlite"
	"github.com/quipper/poc/classroom/be/pkg/common/jwkscache"
	"github.com/quipper/poc/classroom/be/pkg/common/keys"
	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("starting server env=%s", cfg.Env)

	// Initialize signing keys early so that if we generate a dev key,
	// the export instructions are printed immediately at startup.
	if err := keys.Init(); err != nil {
		logger.Error("init keys: %v", err)
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("open sqlite %s: %v", cfg.SQLitePath, err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache jwkscache.Cache
	if cfg.Auth.JWKSURL != "" {
		cache = jwkscache.New(ctx, cfg.Auth.JWKSRefresh)
		logger.Info("verifying tokens with external JWKS %s", cfg.Auth.JWKSURL)
	}

	notifications := notificationsSqlite.NewSQLiteRepo(sqlDB)
	h := classroomHandler.NewHandler(
		rosterSqlite.NewSQLiteRepo(sqlDB),
		studentsSqlite.NewSQLiteRepo(sqlDB),
		notifications,
		cfg.Auth,
		cache,
	)

	var pruner *jobs.NotificationPruner
	if cfg.NotificationRetention > 0 {
		pruner = jobs.NewNotificationPruner(notifications, cfg.NotificationRetention)
		if err := pruner.Start(cfg.NotificationPruneSchedule); err != nil {
			logger.Error("start pruner: %v", err)
			os.Exit(1)
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.AccessLog)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"Link", "X-Request-ID"},
		MaxAge:         300,
	}))
	router.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	router.Use(chimw.RequestSize(cfg.MaxBodyBytes))
	router.Mount("/", h.Router())

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	// Graceful shutdown on signal or listener failure
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if pruner != nil {
			pruner.Stop(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server: %v", err)
	}
	logger.Info("server stopped")
}
