package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"reefwatch/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases + workers).
// 3) Start HTTP server; drain consumers on shutdown.
func main() {
	log.Println("reefwatch api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("reefwatch api stopped with error: %v", err)
		}
	case <-ctx.Done():
		if !app.Drain() {
			log.Println("shutdown grace expired with consumer work in flight")
		}
	}

	if err := app.Close(); err != nil {
		log.Printf("api shutdown close failed: %v", err)
	}
}
