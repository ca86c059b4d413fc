package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"suburbtrends/server/config"
	"suburbtrends/server/internal/api"
	"suburbtrends/server/internal/cache"
	"suburbtrends/server/internal/collector"
	"suburbtrends/server/internal/database"
	"suburbtrends/server/internal/scheduler"
	"suburbtrends/server/internal/stats"
	"suburbtrends/server/internal/upstream"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.Infof("Using database at: %s", cfg.DatabasePath)
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	if err := db.SeedListingCategories(); err != nil {
		logger.WithError(err).Fatal("Failed to seed listing categories")
	}

	// A run that died mid-cycle on an earlier date can never complete.
	today := time.Now().UTC().Format("2006-01-02")
	if stale, err := db.MarkStaleSnapshotsFailed(today); err != nil {
		logger.WithError(err).Error("Failed to mark stale snapshots")
	} else if stale > 0 {
		logger.WithField("count", stale).Warn("Marked stale in-progress snapshots as failed")
	}

	resultCache := cache.New(cfg.CacheTTL())
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.FetchTimeout(), logger)
	col := collector.New(db, client, resultCache, logger)

	sched := scheduler.New(db, col, logger, cfg.Collection.RunOnStart)
	if err := sched.Start(cfg.Collection.Cron); err != nil {
		logger.WithError(err).Fatal("Failed to start collection schedule")
	}
	defer sched.Stop()

	statsEngine := stats.NewEngine(db.GetDB(), logger)
	handler := api.NewHandler(statsEngine, col, resultCache, logger)
	router := api.SetupRouter(handler)

	logger.Infof("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
