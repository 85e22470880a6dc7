package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/engagement-agent/internal/api"
	"github.com/ignite/engagement-agent/internal/app"
	"github.com/ignite/engagement-agent/internal/config"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	log.Println("Starting engagement agent API server...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	log.Println("Connected to database")

	handlers := api.NewHandlers(a.UserService, a.Engine, a.Cycle, a.Activity)
	handlers.SetCycleLock(a.CycleLock)
	handlers.SetUtility(a.Utility, a.Sender)
	handlers.SetAnalytics(a.Analytics, a.Tracker, cfg.Analytics.WindowDays)
	if a.Storage != nil {
		handlers.SetHistory(a.Storage)
	}

	// Health checks cover S3 only when reports are archived there.
	var bucket api.BucketHeader
	if cfg.Analytics.Archive && cfg.Storage.Type == "aws" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.AWSRegion))
		if err != nil {
			log.Printf("Warning: AWS config for health checks failed: %v", err)
		} else {
			bucket = s3.NewFromConfig(awsCfg)
		}
	}
	var depth api.QueueDepth
	if a.Queue != nil {
		depth = a.Queue
	}
	health := api.NewHealthChecker(a.DB, a.Redis, bucket, cfg.Storage.S3Bucket, depth)

	server := api.NewServer(cfg.Server, handlers, health)

	go func() {
		log.Printf("API server listening on %s", server.Addr())
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
