package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "8001", cfg.Metrics.Port)
	assert.Equal(t, "mobilenet_v2", cfg.Model.Name)
	assert.Equal(t, 0.5, cfg.Model.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Model.MaxResults)
	assert.Equal(t, []string{"jpeg", "jpg", "png"}, cfg.Images.AllowedExtensions)
	assert.EqualValues(t, 10*1024*1024, cfg.Images.MaxImageSize)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "0.0.0.0:8001", cfg.MetricsAddr())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("METRICS_PORT", "9001")
	t.Setenv("MODEL_NAME", "resnet50")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.1")
	t.Setenv("MAX_RESULTS", "3")
	t.Setenv("ALLOWED_EXTENSIONS", "PNG, .webp")
	t.Setenv("MAX_IMAGE_SIZE", "2048")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "9001", cfg.Metrics.Port)
	assert.Equal(t, "resnet50", cfg.Model.Name)
	assert.Equal(t, 0.1, cfg.Model.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Model.MaxResults)
	assert.Equal(t, []string{"png", "webp"}, cfg.Images.AllowedExtensions)
	assert.EqualValues(t, 2048, cfg.Images.MaxImageSize)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"threshold above one", "CONFIDENCE_THRESHOLD", "1.5"},
		{"negative threshold", "CONFIDENCE_THRESHOLD", "-0.1"},
		{"zero results", "MAX_RESULTS", "0"},
		{"zero size", "MAX_IMAGE_SIZE", "0"},
		{"no extensions", "ALLOWED_EXTENSIONS", " , "},
		{"threshold not a number", "CONFIDENCE_THRESHOLD", "high"},
		{"results not a number", "MAX_RESULTS", "five"},
		{"size not a number", "MAX_IMAGE_SIZE", "10MB"},
		{"debug not a bool", "DEBUG", "yes"},
		{"cors not a bool", "CORS_ENABLED", "on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReportsMalformedValue(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "high")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIDENCE_THRESHOLD")
	assert.Contains(t, err.Error(), `"high"`)
}

func TestParseExtensions(t *testing.T) {
	assert.Equal(t, []string{"jpeg", "jpg", "png"}, ParseExtensions("png,JPG, .jpeg,jpg"))
	assert.Empty(t, ParseExtensions(""))
}
