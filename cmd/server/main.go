package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/config"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/handler"
	"github.com/levelup/internal/logging"
	"github.com/levelup/internal/router"
	"github.com/levelup/internal/scheduler"
	"github.com/levelup/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}

	if cfg.RewardCatalogPath != "" {
		count, err := service.NewRewardService(db.DB).LoadCatalog(cfg.RewardCatalogPath)
		if err != nil {
			log.WithError(err).WithField("path", cfg.RewardCatalogPath).Fatal("failed to import reward catalog")
		}
		log.WithField("rewards", count).Info("reward catalog imported")
	}

	api := handler.NewAPI(db.DB, log, cfg.Location())

	sweeper, err := scheduler.New(cfg.StreakSweepSchedule, cfg.Location(), api.Progress(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to configure streak sweep")
	}
	sweeper.Start()

	r := router.SetupRouter(api, log, router.Options{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	sweeper.Stop()

	if sqlDB, err := db.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
