package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/engagement-agent/internal/app"
	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	log.Println("Starting engagement worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	log.Println("Connected to database")
	if a.Redis == nil {
		log.Println("Redis not configured, falling back to Postgres advisory locks")
	}

	wc := cfg.Worker
	cycles := worker.NewCycleWorker(a.Cycle, a.CycleLock(), wc.CycleInterval())
	if err := cycles.Start(); err != nil {
		log.Fatalf("Failed to start cycle worker: %v", err)
	}
	log.Printf("Cycle worker started (every %s, lock %q)", wc.CycleInterval(), wc.LockKey)

	var reports *worker.ReportWorker
	if a.Storage != nil {
		reportLock := distlock.New(a.Redis, a.DB, wc.LockKey+":report", wc.LockTTL())
		reports = worker.NewReportWorker(a.Analytics, reportLock, cfg.Analytics.WindowDays, wc.ReportInterval())
		if err := reports.Start(); err != nil {
			log.Fatalf("Failed to start report worker: %v", err)
		}
		log.Printf("Report worker started (every %s)", wc.ReportInterval())
	}

	var delivery *worker.DeliveryWorker
	if a.Queue != nil {
		var deliverer worker.Deliverer
		if wc.DeliveryWebhookURL != "" {
			deliverer = worker.NewWebhookDeliverer(wc.DeliveryWebhookURL, nil, wc.DeliveryRetries)
		}
		delivery = worker.NewDeliveryWorker(a.Queue, deliverer)
		if err := delivery.Start(); err != nil {
			log.Fatalf("Failed to start delivery worker: %v", err)
		}
		if deliverer == nil {
			log.Println("Delivery worker started (no webhook configured, logging payloads)")
		} else {
			log.Println("Delivery worker started")
		}
	}

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cycles.Stop()
	if reports != nil {
		reports.Stop()
	}
	if delivery != nil {
		delivery.Stop()
	}
	log.Println("Worker stopped")
}
