package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// LoadMetadata reads and validates the metadata file at path.
func LoadMetadata(path string) (*Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	metadata.setDefaults()
	if err := metadata.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata %s: %w", path, err)
	}

	return &metadata, nil
}

func (m *Metadata) setDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.ImageSize == 0 {
		m.ImageSize = 224
	}
	size := int64(m.ImageSize)
	if len(m.InputShape) == 0 {
		if m.Layout == LayoutNCHW {
			m.InputShape = []int64{1, 3, size, size}
		} else {
			m.InputShape = []int64{1, size, size, 3}
		}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Labels))}
	}
}

func (m *Metadata) Validate() error {
	if len(m.Labels) == 0 {
		return errors.New("no labels")
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("unknown layout %q", m.Layout)
	}

	size := int64(m.ImageSize)
	var want []int64
	if m.Layout == LayoutNCHW {
		want = []int64{1, 3, size, size}
	} else {
		want = []int64{1, size, size, 3}
	}
	if !equalShape(m.InputShape, want) {
		return fmt.Errorf("input shape %v does not match %s image of size %d", m.InputShape, m.Layout, m.ImageSize)
	}

	if n := elements(m.OutputShape); n != int64(len(m.Labels)) {
		return fmt.Errorf("output shape %v holds %d scores but %d labels are defined", m.OutputShape, n, len(m.Labels))
	}
	return nil
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range shape {
		n *= dim
	}
	return n
}
