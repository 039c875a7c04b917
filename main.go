package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"papanskor/config"
	"papanskor/config/database"
	handler "papanskor/internal/scoreboard"
	"papanskor/internal/scoreboard/repository"
	"papanskor/internal/scoreboard/service"
	"papanskor/internal/storage"
	"papanskor/middleware"
	"papanskor/pkg/logger"
	"papanskor/pkg/metrics"
	"papanskor/router"
	"papanskor/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Log.Sync()
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg.DB)
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Sugar.Fatalf("Schema setup failed: %v", err)
	}

	repo := repository.NewScoreboardRepository(db)
	hub := socket.NewHub(nil)
	svc := service.NewScoreboardService(repo, hub)
	svc.Channel = cfg.DB.FeedChannel
	hub.Access = svc

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Sugar.Warnf("Redis unavailable, share lookups go to the database: %v", err)
		} else {
			svc.Cache = repository.NewShareCache(rdb, "papanskor:share:", cfg.Redis.ShareTTL)
			logger.Sugar.Infof("Share cache enabled at %s", cfg.Redis.Addr)
		}
	}

	if cfg.MinIO.Enabled() {
		assets, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			logger.Sugar.Warnf("Asset storage disabled: %v", err)
		} else {
			svc.Assets = assets
		}
	}

	go hub.Run(ctx)
	if svc.Channel != "" {
		relay := &socket.Relay{Hub: hub, Loader: repo}
		go func() {
			if err := relay.Listen(ctx, cfg.DB.DSN(), svc.Channel); err != nil {
				logger.Sugar.Errorf("Change relay stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: router.Setup(router.Deps{
			Handler: handler.NewScoreboardHandler(svc),
			Hub:     hub,
			Auth:    middleware.NewAuth(cfg.JWT.Secret),
			Limiter: middleware.NewRateLimiter(cfg.Limits.MutationsPerSecond, cfg.Limits.Burst),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Sugar.Infof("Go Backend listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}
