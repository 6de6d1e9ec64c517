package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"usdgflow/config"
	"usdgflow/internal/history"
	"usdgflow/internal/pipeline"
	"usdgflow/logger"
	"usdgflow/reader"
)

// backfill reconstructs missing history log entries from the exchanges'
// historical daily candles, one snapshot per calendar day.
func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	weeks := flag.Int("weeks", 4, "Number of weeks of history to reconstruct")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	clients := reader.BuildClients(cfg)
	if len(clients) == 0 {
		log.WithComponent("backfill").Error("no exchange sources enabled")
		os.Exit(1)
	}

	var mirror *history.Mirror
	if cfg.History.Mirror.Enabled {
		mirror, err = history.NewMirror(cfg.History.Mirror)
		if err != nil {
			log.WithError(err).Error("failed to create history mirror")
			os.Exit(1)
		}
	}

	store := history.NewStore(cfg.History.Path, mirror)
	pipe := pipeline.NewPipeline(clients, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	log.WithComponent("backfill").WithFields(logger.Fields{"weeks": *weeks}).Info("fetching exchange history")
	unified := pipe.FetchUnified(ctx)

	result, err := store.Backfill(unified, *weeks, time.Now())
	if err != nil {
		log.WithError(err).Error("backfill failed")
		os.Exit(1)
	}

	log.WithComponent("backfill").WithFields(logger.Fields{
		"written": len(result.Written),
		"skipped": len(result.Skipped),
	}).Info("backfill complete")
}
