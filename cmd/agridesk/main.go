package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/app"
	"github.com/agridesk/agridesk/internal/auth"
	"github.com/agridesk/agridesk/internal/authz"
	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/engine"
	"github.com/agridesk/agridesk/internal/observability"
	"github.com/agridesk/agridesk/internal/session"
	"github.com/agridesk/agridesk/internal/shared"
	"github.com/agridesk/agridesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)

	cache := authz.NewCache(cfg.AuthzCacheTTL, nil)

	catalogRepo := catalog.NewRepository(dbpool)
	actorsRepo := actors.NewRepository(dbpool)

	actorsService := actors.NewService(actorsRepo, auditLogger, cache, logger)
	catalogService := catalog.NewService(catalogRepo, auditLogger, cache, logger)

	resolver := authz.NewResolver(actorsService, catalogService, cache, cfg.AuthzStoreTimeout, logger)
	resolver.SetMetrics(metrics)
	evaluator := authz.NewEvaluator(resolver, actorsService, approvalRecorder, logger)
	evaluator.SetMetrics(metrics)

	sessionStore := session.NewRedisStore(redisClient)
	sessions := session.NewManager(sessionStore, session.Config{
		Window:        cfg.SessionTTL,
		SweepInterval: cfg.SessionSweepInterval,
		Logger:        logger,
		OnExpire: func(sess session.Session) {
			metrics.SessionClosed()
			logger.Info("session expired",
				slog.String("session_id", sess.ID),
				slog.Int64("actor_id", sess.ActorID))
		},
	})
	defer sessions.Close()

	provider := auth.NewLocalProvider(actorsService)
	authService := auth.NewService(provider, actorsService, sessions, auditLogger, logger)
	authService.SetMetrics(metrics)
	authHandler := auth.NewHandler(logger, authService)

	if err := catalog.Seed(ctx, catalogService); err != nil {
		logger.Error("seed catalog", slog.Any("error", err))
		os.Exit(1)
	}
	if err := catalogService.VerifyIntegrity(ctx); err != nil {
		logger.Error("catalog integrity", slog.Any("error", err))
		os.Exit(1)
	}

	eng := engine.New(authService, resolver, evaluator, actorsService, catalogService, sessions, logger)

	mw := authz.Middleware{Resolver: resolver, Logger: logger}
	catalogHandler := catalog.NewHandler(logger, catalogService, mw.RequireAny, mw.RequireAll)
	actorsHandler := actors.NewHandler(logger, actorsService, mw.RequireAny, mw.RequireAll)
	authzHandler := authz.NewHandler(logger, eng, mw)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		ActorsHandler:  actorsHandler,
		AuthzHandler:   authzHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
