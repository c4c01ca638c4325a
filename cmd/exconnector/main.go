package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"exconnector/internal/app"
	"exconnector/internal/config"
	"exconnector/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("EXCONNECTOR_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Infof("✓ config loaded (env=%s, venue=%s)", cfg.App.Env, cfg.Venue.Name)

	a, err := app.NewApp(cfg, cfgPath)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
	logger.Infof("exconnector stopped")
}
