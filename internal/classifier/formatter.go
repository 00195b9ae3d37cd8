package classifier

import "github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/model"

// Format wraps ranked predictions into the response envelope.
func Format(predictions []model.Prediction, executionTimeMs float64, modelName string) *model.PredictionResponse {
	if predictions == nil {
		predictions = []model.Prediction{}
	}
	return &model.PredictionResponse{
		Predictions: predictions,
		Metadata: model.ResponseMetadata{
			ExecutionTimeMs: executionTimeMs,
			Model:           modelName,
			Count:           len(predictions),
		},
	}
}
