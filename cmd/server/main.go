package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"skirmish/internal/app"
	"skirmish/internal/config"
	"skirmish/internal/telemetry"
)

func main() {
	envFile := flag.String("env", config.DefaultEnvFile, "optional .env file")
	flag.Parse()

	logger := telemetry.WrapLogger(log.Default())
	cfg, err := config.Load(*envFile, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, app.Options{Logger: logger}); err != nil {
		log.Fatalf("%v", err)
	}
}
