package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/engagement-agent/internal/app"
	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/tracking"
)

// Modes:
//
//	serve   pixel and redirect endpoints; events go to SQS when a queue is
//	        configured and straight to Postgres otherwise
//	consume read events from SQS and apply them to Postgres
func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	mode := flag.String("mode", "serve", "serve or consume")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	tc := cfg.Tracking
	if tc.Secret == "" {
		log.Fatal("TRACKING_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sqsClient *sqs.Client
	if tc.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(tc.Region))
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
	}

	switch *mode {
	case "serve":
		serve(ctx, cfg, sqsClient)
	case "consume":
		consume(ctx, cfg, sqsClient)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func serve(ctx context.Context, cfg *config.Config, sqsClient *sqs.Client) {
	var sink tracking.Sink
	var pub *tracking.Publisher
	if sqsClient != nil {
		pub = tracking.NewPublisher(sqsClient, cfg.Tracking.QueueURL)
		sink = pub
	} else {
		a, err := app.New(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer a.Close()
		sink = tracking.NewDirectSink(a.Tracker)
		log.Println("SQS_TRACKING_QUEUE_URL not set, recording events directly")
	}

	handler := tracking.NewHandler(sink, tracking.NewSigner(cfg.Tracking.Secret), nil)
	port := strconv.Itoa(cfg.Tracking.Port)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	waitForSignal()
	log.Println("shutting down tracking service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if pub != nil {
		pub.Wait()
	}
}

func consume(ctx context.Context, cfg *config.Config, sqsClient *sqs.Client) {
	if sqsClient == nil {
		log.Fatal("SQS_TRACKING_QUEUE_URL is required in consume mode")
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	var recorder tracking.Recorder = a.Tracker
	consumer := tracking.NewConsumer(sqsClient, cfg.Tracking.QueueURL, recorder)
	consumer.Start(ctx)
	log.Printf("tracking consumer polling %s", cfg.Tracking.QueueURL)

	waitForSignal()
	log.Println("shutting down tracking consumer...")
	consumer.Stop()
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
