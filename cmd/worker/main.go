package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"reefwatch/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start the recovery projector and fan-out consumer; with RESYNC set,
//    replay the event log before settling into live traffic.
func main() {
	log.Println("reefwatch worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("reefwatch worker stopped with error: %v", err)
	}
}
