package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"usdgflow/config"
	"usdgflow/internal/api"
	"usdgflow/internal/cache"
	"usdgflow/internal/history"
	"usdgflow/internal/pipeline"
	"usdgflow/logger"
	"usdgflow/reader"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
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

	log.WithFields(logger.Fields{
		"service": cfg.Usdgflow.Name,
		"version": cfg.Usdgflow.Version,
	}).Info("starting usdgflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "debug" || cfg.Scheduler.ReportInterval > 0 {
		interval := cfg.Scheduler.ReportInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		logger.InitCloudWatch("", "", cfg.Logging.DashboardName)
		logger.StartReport(ctx, log, interval)
	}

	clients := reader.BuildClients(cfg)
	if len(clients) == 0 {
		log.WithComponent("main").Error("no exchange sources enabled")
		os.Exit(1)
	}

	var mirror *history.Mirror
	if cfg.History.Mirror.Enabled {
		mirror, err = history.NewMirror(cfg.History.Mirror)
		if err != nil {
			log.WithError(err).Error("failed to create history mirror")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("S3 mirror disabled; history log stays local only")
	}

	store := history.NewStore(cfg.History.Path, mirror)
	pipe := pipeline.NewPipeline(clients, store)
	depthTable := pipeline.NewDepthTable(clients, cfg.Depth)
	memo := cache.New(cfg.Cache.TTL)

	var wg sync.WaitGroup

	if cfg.Scheduler.Enabled {
		scheduler, err := pipeline.NewScheduler(pipe, cfg.Scheduler.RunAtUTC)
		if err != nil {
			log.WithError(err).Error("failed to create scheduler")
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Start(ctx)
		}()
	}

	apiServer := api.NewServer(cfg.HTTP, pipe, depthTable, store, memo)
	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Run(ctx); err != nil {
				log.WithError(err).Warn("http api exited with error")
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timed out, forcing exit")
	}
}
