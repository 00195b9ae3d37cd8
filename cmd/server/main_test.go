package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/config"
)

func TestRunReturnsModelInitError(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Model: config.ModelConfig{
			Path:         filepath.Join(dir, "mobilenet_v2.onnx"),
			MetadataPath: filepath.Join(dir, "missing.json"),
		},
	}

	err := run(cfg, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize model server")
}
