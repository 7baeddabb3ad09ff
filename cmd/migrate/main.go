package main

import (
	"context"
	"time"

	"invoice-audit/internal/config"
	"invoice-audit/internal/db"
	"invoice-audit/internal/logging"
	"invoice-audit/migrations"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer pool.Close()

	ms, err := db.LoadMigrations(migrations.FS)
	if err != nil {
		logger.Fatal("load migrations failed", zap.Error(err))
	}
	applied, err := db.Migrate(ctx, pool, ms, logger)
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("migrations complete", zap.Int("applied", applied), zap.Int("total", len(ms)))
}
