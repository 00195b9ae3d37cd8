package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/classifier"
	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/model"
)

// Classifier runs the validate → infer → format pipeline for one upload.
type Classifier interface {
	Classify(ctx context.Context, img model.UploadedImage, topK int) (*model.PredictionResponse, error)
}

// Info is reported by the root endpoint.
type Info struct {
	Name       string
	Version    string
	APIPrefix  string
	MetricsURL string
}

type Handler struct {
	classifier   Classifier
	maxImageSize int64
	info         Info
	log          *zap.Logger
}

// NewHandler reads at most maxImageSize+1 bytes of an upload, enough for
// the classifier to reject anything larger.
func NewHandler(classifier Classifier, maxImageSize int64, info Info, log *zap.Logger) *Handler {
	return &Handler{
		classifier:   classifier,
		maxImageSize: maxImageSize,
		info:         info,
		log:          log,
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    h.info.Name,
		"version": h.info.Version,
		"status":  "running",
		"endpoints": gin.H{
			"api":     h.info.APIPrefix,
			"metrics": h.info.MetricsURL,
		},
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MetricsSummary is a placeholder pointing callers at the Prometheus
// exporter; it does not aggregate anything.
func (h *Handler) MetricsSummary(c *gin.Context) {
	const hint = "Use Prometheus endpoint for actual metrics"
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"metrics": gin.H{
			"total_requests":  hint,
			"average_latency": hint,
			"inference_time":  hint,
		},
	})
}

// Classify accepts a multipart form with "file" and an optional top_k query
// or form value.
func (h *Handler) Classify(c *gin.Context) {
	topK, err := parseTopK(c)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.log.Warn("Failed to get file from form", zap.Error(err))
		detail(c, http.StatusBadRequest, "No image file provided. Use 'file' as the form field name")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()

	resp, err := h.classifyUpload(c.Request.Context(), file, fileHeader.Filename, topK)
	if err != nil {
		var validationErr *classifier.ValidationError
		if errors.As(err, &validationErr) {
			detail(c, http.StatusBadRequest, validationErr.Message)
			return
		}
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}

// classifyUpload reads the upload and runs the classifier on it. The read
// position of file is restored to the start on every return path.
func (h *Handler) classifyUpload(ctx context.Context, file io.ReadSeeker, filename string, topK int) (*model.PredictionResponse, error) {
	defer func() {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			h.log.Warn("Failed to rewind uploaded file", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageSize+1))
	if err != nil {
		h.log.Error("Failed to read uploaded file", zap.Error(err))
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	h.log.Debug("Received file",
		zap.String("filename", filename),
		zap.Int("size", len(data)),
		zap.Int("top_k", topK))

	return h.classifier.Classify(ctx, model.UploadedImage{
		Data:     data,
		Filename: filename,
	}, topK)
}

func parseTopK(c *gin.Context) (int, error) {
	raw := c.Query("top_k")
	if raw == "" {
		raw = c.PostForm("top_k")
	}
	if raw == "" {
		return 0, nil
	}
	topK, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("top_k must be an integer, got %q", raw)
	}
	return topK, nil
}

func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}
