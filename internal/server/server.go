package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/config"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/handlers"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/metrics"
)

// Server runs the API listener and, on a separate address, the Prometheus
// exporter.
type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	log           *zap.Logger
}

// NewRouter wires the API routes. Request metrics are collected for every
// route, including the health checks.
func NewRouter(cfg *config.Config, h *handlers.Handler, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(handlers.RequestLogger(log))
	router.Use(m.Middleware())
	if cfg.CORSEnabled {
		router.Use(handlers.CORS())
	}

	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group(config.APIPrefix)
	{
		api.GET("/health", h.Health)
		api.POST("/classify", h.Classify)
		api.GET("/metrics/summary", h.MetricsSummary)
	}

	return router
}

func New(cfg *config.Config, h *handlers.Handler, m *metrics.Metrics, log *zap.Logger) *Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           NewRouter(cfg, h, m, log),
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		metricsServer: &http.Server{
			Addr:              cfg.MetricsAddr(),
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("address", s.httpServer.Addr),
		zap.String("metrics_address", s.metricsServer.Addr))

	return s
}

// Run blocks until the API listener stops. The metrics listener runs in the
// background; if it fails to start the API listener is shut down too.
func (s *Server) Run() error {
	metricsErr := make(chan error, 1)
	go func() {
		s.log.Info("Metrics server running", zap.String("address", s.metricsServer.Addr))
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", zap.Error(err))
			metricsErr <- err
			_ = s.httpServer.Close()
		}
	}()

	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	select {
	case mErr := <-metricsErr:
		return fmt.Errorf("metrics server: %w", mErr)
	default:
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return errors.Join(
		s.httpServer.Shutdown(ctx),
		s.metricsServer.Shutdown(ctx),
	)
}
