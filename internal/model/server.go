package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

type Options struct {
	ModelPath           string
	MetadataPath        string
	LibraryPath         string
	MaxResults          int
	ConfidenceThreshold float64
}

// Server runs a pretrained image classifier through ONNX Runtime. It is safe
// for concurrent use: every Predict call allocates its own tensors and the
// dynamic session may be run from several goroutines at once.
type Server struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
	opts     Options
	log      *zap.Logger

	rangeWarning sync.Once
}

func NewServer(opts Options, log *zap.Logger) (*Server, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Info("Model loaded",
		zap.String("path", opts.ModelPath),
		zap.String("name", metadata.Name),
		zap.Int("classes", len(metadata.Labels)),
		zap.Int64s("input_shape", metadata.InputShape))

	return &Server{
		session:  session,
		Metadata: *metadata,
		opts:     opts,
		log:      log,
	}, nil
}

// Predict classifies raw JPEG/PNG bytes and returns up to MaxResults
// predictions at or above the confidence threshold, highest first.
func (s *Server) Predict(ctx context.Context, data []byte) ([]Prediction, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	inputData := preprocessImage(img, s.Metadata.ImageSize, s.Metadata.Layout)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, err := s.run(inputData)
	if err != nil {
		return nil, err
	}

	if s.Metadata.ApplySoftmax {
		scores = softmax(scores)
	} else {
		s.checkScores(scores)
	}

	return rankPredictions(scores, s.Metadata.Labels, s.opts.MaxResults, s.opts.ConfidenceThreshold), nil
}

// checkScores warns, once per server, when the model emits scores above 1
// without softmax enabled. Such scores are clamped to 1 when ranked, which
// usually means the metadata should set apply_softmax.
func (s *Server) checkScores(scores []float32) {
	for i, v := range scores {
		if v > 1 {
			s.rangeWarning.Do(func() {
				s.log.Warn("Model output exceeds 1 without softmax, clamping confidences",
					zap.Int("index", i),
					zap.Float32("score", v))
			})
			return
		}
	}
}

func (s *Server) run(inputData []float32) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(s.Metadata.InputShape...), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(s.Metadata.OutputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (s *Server) Close() {
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			s.log.Warn("Failed to destroy ONNX session", zap.Error(err))
		}
	}
	if err := ort.DestroyEnvironment(); err != nil {
		s.log.Warn("Failed to destroy ONNX environment", zap.Error(err))
	}
}
