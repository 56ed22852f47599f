package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"parbi/classify"
	"parbi/db"
	qhttp "parbi/http"
	"parbi/logging"
	"parbi/monitoring"
	"parbi/pages"
	"parbi/resources"
)

func main() {
	path, err := configPath(".env")
	if err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	config, err := loadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, flush, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, config, logger)
	stop()
	if err != nil {
		logger.Error("exiting with error", zap.Error(err))
	}
	if ferr := flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, config *Config, logger *zap.Logger) (err error) {
	res, err := resources.Load(ctx, config.Resources, logger)
	if err != nil {
		return err
	}

	paths, err := config.ModelPaths()
	if err != nil {
		return err
	}
	metrics := monitoring.NewMetrics()
	dispatcher, err := classify.NewDispatcher(res.Vectorizer, classify.Options{
		Paths:   paths,
		Cache:   config.CacheOptions(),
		Metrics: metrics,
		Logger:  logger.Named("classify"),
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dispatcher.Close()) }()

	for _, m := range dispatcher.Models() {
		if !m.Available {
			logger.Warn("model artifact missing", zap.String("model", m.Name), zap.String("path", m.Path))
		}
	}

	var history pages.History
	if config.History.Path != "" {
		var store *db.Store
		store, err = db.Open(config.History.Path)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, store.Close()) }()
		history = store
		logger.Info("prediction history enabled", zap.String("path", config.History.Path))
	}

	router, err := pages.NewRouter(res, dispatcher, pages.Options{
		History: history,
		Views:   metrics,
		Logger:  logger.Named("pages"),
	})
	if err != nil {
		return err
	}

	server, err := qhttp.NewServer(config.HTTP, qhttp.Deps{
		Pages:     router,
		Predictor: dispatcher,
		Resources: res,
		History:   history,
		Metrics:   metrics,
		Logger:    logger.Named("http"),
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("exiting")
	return nil
}
