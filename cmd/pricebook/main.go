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

	"github.com/masig/pricebook/internal/activity"
	"github.com/masig/pricebook/internal/app"
	"github.com/masig/pricebook/internal/auth"
	"github.com/masig/pricebook/internal/changefeed"
	"github.com/masig/pricebook/internal/observability"
	"github.com/masig/pricebook/internal/platform/cache"
	"github.com/masig/pricebook/internal/platform/db"
	"github.com/masig/pricebook/internal/products"
	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
	"github.com/masig/pricebook/internal/stats"
	"github.com/masig/pricebook/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager, err := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	if err != nil {
		logger.Error("session manager", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	feed := changefeed.New(redisClient, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	activityRepo := activity.NewRepository(dbpool)
	var activitySink activity.Sink = activityRepo
	if cfg.ActivityMode == app.ActivityModeQueue {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		activitySink = jobs.NewActivityQueue(jobClient)
	}
	recorder := activity.NewRecorder(activitySink, logger, metrics.ActivityFailures())
	defer recorder.Wait()
	activityService := activity.NewService(activityRepo, cfg.ReportCompany, cfg.ReportLocation())

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), logger)
	rbacMiddleware := rbac.Middleware{
		Service: rbacService,
		Logger:  logger,
		Paths:   rbac.Paths{SignIn: cfg.SignInPath, Landing: cfg.LandingPath},
	}

	authService := auth.NewService(auth.NewRepository(dbpool), sessionManager)
	authService.OnSessionChange(func(_ context.Context, event auth.SessionEvent, sess *shared.Session) {
		logger.Info("session change",
			slog.String("event", string(event)),
			slog.String("user_id", sess.UserID.String()))
	})
	authHandler := auth.NewHandler(logger, authService, sessionManager, rbacService)

	productService := products.NewService(products.ServiceConfig{
		Repo:     products.NewRepository(dbpool),
		Feed:     feed,
		Recorder: recorder,
		Logger:   logger,
		Location: cfg.ReportLocation(),
	})
	productsHandler := products.NewHandler(logger, productService, feed.StreamHandler(products.FeedTable), rbacMiddleware.API)
	statsHandler := stats.NewHandler(logger, productService, rbacMiddleware.API)
	activityHandler := activity.NewHandler(logger, activityService, rbacMiddleware.API)
	adminHandler := rbac.NewAdminHandler(logger, rbacService, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		RBACMiddleware:  rbacMiddleware,
		AuthHandler:     authHandler,
		ProductsHandler: productsHandler,
		StatsHandler:    statsHandler,
		ActivityHandler: activityHandler,
		AdminHandler:    adminHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr), slog.String("activity_mode", cfg.ActivityMode))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
