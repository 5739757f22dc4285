package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"RecipeBox/internal/catalog"
	"RecipeBox/internal/config"
	"RecipeBox/internal/seed"
	"RecipeBox/pkg/kit"
)

const service = "recipebox"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := kit.NewLogger(service, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("open store failed", zap.Error(err))
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := context.Background()
	cat, err := catalog.Initialize(ctx, catalog.Limit(store, cfg.QuotaBytes), seed.Load(log), catalog.Options{
		Log:     log.Named("catalog"),
		Metrics: catalog.NewMetrics(reg),
	})
	if err != nil {
		log.Warn("recipes not saved at startup, changes may not survive a restart", zap.Error(err))
	}
	log.Info("catalog ready", zap.Int("recipes", cat.Len()))

	h := catalog.NewHandler(&catalog.Server{Catalog: cat, Log: log}, catalog.HTTPDeps{
		Log:              log,
		Service:          service,
		Registry:         reg,
		MetricsEnabled:   cfg.MetricsEnabled,
		MetricsToken:     cfg.MetricsToken,
		WriteLimitPerMin: cfg.WriteLimitPerMin,
	})

	if err := kit.RunHTTPServer(ctx, cfg.Addr, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(cfg config.Config, log *zap.Logger) (catalog.KV, func(), error) {
	if cfg.DBPath == "" {
		log.Warn("RECIPEBOX_DB_PATH not set, recipes are kept in memory only")
		return catalog.NewMemKV(), func() {}, nil
	}

	db, err := catalog.OpenSQLiteKV(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	log.Info("store opened", zap.String("path", cfg.DBPath))
	return db, func() { _ = db.Close() }, nil
}
