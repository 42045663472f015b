package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"gateci/internal/cache"
	"gateci/internal/config"
	"gateci/internal/core"
	"gateci/internal/history"
	"gateci/internal/sched"
	"gateci/internal/server"
	"gateci/internal/storage"
	"gateci/internal/trigger"
)

func main() {
	cfgPath := os.Getenv("GATECI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Fatalf("failed to open history: %v", err)
	}

	runner := core.NewRunner(cfg.RunConfig(), cfg.Jobs,
		cache.New(cfg.CacheDir), storage.NewLogStorage(cfg.LogDir))

	scheduler := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		return runner.Run(ctx, ex.ID, ex.Request.Event)
	}, hist)
	defer scheduler.Close()

	srv := server.New(trigger.NewEvaluator(cfg.Rules()), scheduler, hist, cfg.WebhookSecret)

	addr := cfg.Listen
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	fmt.Println("gateci-server listening on", addr)
	log.Fatal(http.ListenAndServe(addr, srv.Routes()))
}
