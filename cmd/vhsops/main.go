package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vhsops/internal/app"
	"vhsops/internal/config"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := config.Load()
	sugar.Infow("config loaded",
		"base", cfg.AirtableBaseID, "table", cfg.AirtableTableRef,
		"view", cfg.AirtableViewID, "unit", cfg.DurationUnit, "db", cfg.DBPath)

	application, err := app.New(cfg, sugar)
	if err != nil {
		sugar.Fatalw("init failed", "error", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := application.Run(ctx); err != nil {
		sugar.Fatalw("run failed", "error", err)
	}
}
