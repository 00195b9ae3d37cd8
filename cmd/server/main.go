package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/classifier"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/config"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/handlers"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/logger"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/metrics"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/model"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// run wires the service together and blocks until a shutdown signal or a
// server failure. Deferred cleanup runs before it returns.
func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Loading model", zap.String("path", cfg.Model.Path))

	modelServer, err := model.NewServer(model.Options{
		ModelPath:           cfg.Model.Path,
		MetadataPath:        cfg.Model.MetadataPath,
		LibraryPath:         cfg.Model.LibraryPath,
		MaxResults:          cfg.Model.MaxResults,
		ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize model server: %w", err)
	}
	defer modelServer.Close()

	m := metrics.New()

	svc := classifier.NewService(
		classifier.NewValidator(cfg.Images.MaxImageSize, cfg.Images.AllowedExtensions),
		modelServer,
		m,
		cfg.Model.Name,
		log,
	)

	h := handlers.NewHandler(svc, cfg.Images.MaxImageSize, handlers.Info{
		Name:       config.ProjectName,
		Version:    config.Version,
		APIPrefix:  config.APIPrefix,
		MetricsURL: "http://" + cfg.MetricsAddr() + "/metrics",
	}, log)

	srv := server.New(cfg, h, m, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	log.Info("Endpoints",
		zap.String("classify", "POST "+config.APIPrefix+"/classify"),
		zap.String("health", "GET /health"),
		zap.String("metrics", "GET http://"+cfg.MetricsAddr()+"/metrics"))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}
