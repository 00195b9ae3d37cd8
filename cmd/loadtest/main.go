package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/loadtest"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/logger"
)

func main() {
	imagesDir := os.Getenv("TEST_IMAGES_DIR")
	if imagesDir == "" {
		imagesDir = "../test-images"
	}

	var cfg loadtest.Config
	flag.StringVar(&cfg.Host, "host", "http://localhost:8000", "base URL of the classification service")
	flag.StringVar(&cfg.ImagesDir, "images", imagesDir, "directory with .jpg/.jpeg/.png test images")
	flag.IntVar(&cfg.Users, "users", 10, "number of concurrent virtual users")
	flag.DurationVar(&cfg.Duration, "duration", time.Minute, "how long to generate load")
	flag.DurationVar(&cfg.MinWait, "min-wait", time.Second, "minimum wait between a user's requests")
	flag.DurationVar(&cfg.MaxWait, "max-wait", 3*time.Second, "maximum wait between a user's requests")
	flag.DurationVar(&cfg.ReadyTimeout, "ready-timeout", 30*time.Second, "how long to wait for /health before giving up")
	debug := flag.Bool("debug", false, "log every request")
	flag.Parse()

	log, err := logger.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Users <= 0 {
		log.Fatal("users must be positive", zap.Int("users", cfg.Users))
	}

	images, err := loadtest.LoadImages(cfg.ImagesDir, log)
	if err != nil {
		log.Warn("Could not load test images", zap.Error(err))
	}
	log.Info("Loaded test images", zap.Int("count", len(images)), zap.String("dir", cfg.ImagesDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := loadtest.NewRunner(cfg, images, nil, log)

	if err := runner.WaitReady(ctx); err != nil {
		log.Fatal("Service did not become ready", zap.String("host", cfg.Host), zap.Error(err))
	}

	log.Info("Starting load test",
		zap.String("run_id", runner.RunID()),
		zap.String("host", cfg.Host),
		zap.Int("users", cfg.Users),
		zap.Duration("duration", cfg.Duration))

	stats := runner.Run(ctx)

	fmt.Printf("\nRun %s\n", runner.RunID())
	if err := stats.Print(os.Stdout); err != nil {
		log.Error("Failed to print stats", zap.Error(err))
	}
}
