package classifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/model"
)

// Predictor is the black-box classifier. Predict returns ranked predictions,
// highest confidence first.
type Predictor interface {
	Predict(ctx context.Context, data []byte) ([]model.Prediction, error)
}

// InferenceObserver records how long each model call took.
type InferenceObserver interface {
	ObserveInference(d time.Duration)
}

type Service struct {
	validator *Validator
	predictor Predictor
	observer  InferenceObserver
	modelName string
	log       *zap.Logger
	now       func() time.Time
}

func NewService(validator *Validator, predictor Predictor, observer InferenceObserver, modelName string, log *zap.Logger) *Service {
	return &Service{
		validator: validator,
		predictor: predictor,
		observer:  observer,
		modelName: modelName,
		log:       log,
		now:       time.Now,
	}
}

// Classify validates img, runs inference and formats the result. topK
// truncates the ranked predictions when 0 < topK < len(predictions).
//
// It returns *ValidationError for rejected uploads and *InferenceError for
// anything that fails once the model has been invoked.
func (s *Service) Classify(ctx context.Context, img model.UploadedImage, topK int) (*model.PredictionResponse, error) {
	start := s.now()

	if ok, message := s.validator.Validate(img.Data, img.Filename); !ok {
		return nil, &ValidationError{Message: message}
	}

	inferenceStart := s.now()
	predictions, err := s.predict(ctx, img.Data)
	if err != nil {
		s.log.Error("Error processing request",
			zap.String("filename", img.Filename),
			zap.Error(err))
		return nil, &InferenceError{Err: err}
	}
	if s.observer != nil {
		s.observer.ObserveInference(s.now().Sub(inferenceStart))
	}

	if topK > 0 && topK < len(predictions) {
		predictions = predictions[:topK]
	}

	executionTime := float64(s.now().Sub(start).Microseconds()) / 1000

	return Format(predictions, executionTime, s.modelName), nil
}

func (s *Service) predict(ctx context.Context, data []byte) (predictions []model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	return s.predictor.Predict(ctx, data)
}
