package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/N4RLY/Distributed-Image-Classifier-on-Kubernetes/internal/model"
)

type fakePredictor struct {
	predictions []model.Prediction
	err         error
	panicWith   any
	calls       int
}

func (f *fakePredictor) Predict(_ context.Context, _ []byte) ([]model.Prediction, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.predictions, f.err
}

type fakeObserver struct {
	observed []time.Duration
}

func (f *fakeObserver) ObserveInference(d time.Duration) {
	f.observed = append(f.observed, d)
}

func ranked() []model.Prediction {
	return []model.Prediction{
		{ClassID: "n02123045", ClassName: "tabby", Confidence: 0.9},
		{ClassID: "n02123159", ClassName: "tiger_cat", Confidence: 0.8},
		{ClassID: "n02124075", ClassName: "Egyptian_cat", Confidence: 0.7},
		{ClassID: "n02127052", ClassName: "lynx", Confidence: 0.6},
		{ClassID: "n02971356", ClassName: "carton", Confidence: 0.55},
	}
}

func newTestService(p Predictor, o InferenceObserver) *Service {
	return NewService(defaultValidator(), p, o, "mobilenet_v2", zap.NewNop())
}

func TestClassifySuccess(t *testing.T) {
	predictor := &fakePredictor{predictions: ranked()}
	observer := &fakeObserver{}
	svc := newTestService(predictor, observer)

	resp, err := svc.Classify(context.Background(), model.UploadedImage{Data: make([]byte, 50*1024), Filename: "cat.jpg"}, 0)
	require.NoError(t, err)

	assert.Len(t, resp.Predictions, 5)
	assert.Equal(t, len(resp.Predictions), resp.Metadata.Count)
	assert.Equal(t, "mobilenet_v2", resp.Metadata.Model)
	assert.GreaterOrEqual(t, resp.Metadata.ExecutionTimeMs, 0.0)
	assert.Len(t, observer.observed, 1)
	assert.Equal(t, 1, predictor.calls)
}

func TestClassifyTopK(t *testing.T) {
	tests := []struct {
		name string
		topK int
		want int
	}{
		{"unset", 0, 5},
		{"negative ignored", -1, 5},
		{"truncates", 2, 2},
		{"one", 1, 1},
		{"equal to length", 5, 5},
		{"larger than length", 50, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakePredictor{predictions: ranked()}, nil)
			resp, err := svc.Classify(context.Background(), model.UploadedImage{Data: []byte{1}, Filename: "cat.png"}, tt.topK)
			require.NoError(t, err)

			require.Len(t, resp.Predictions, tt.want)
			assert.Equal(t, tt.want, resp.Metadata.Count)
			assert.Equal(t, ranked()[:tt.want], resp.Predictions)
		})
	}
}

func TestClassifyValidationError(t *testing.T) {
	predictor := &fakePredictor{predictions: ranked()}
	svc := newTestService(predictor, nil)

	_, err := svc.Classify(context.Background(), model.UploadedImage{Data: make([]byte, 15*1024*1024), Filename: "x.png"}, 0)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "10")
	assert.Zero(t, predictor.calls, "model must not run for rejected uploads")
}

func TestClassifyInferenceError(t *testing.T) {
	cause := errors.New("failed to decode image: image: unknown format")
	observer := &fakeObserver{}
	svc := newTestService(&fakePredictor{err: cause}, observer)

	_, err := svc.Classify(context.Background(), model.UploadedImage{Data: []byte("junk"), Filename: "cat.jpg"}, 0)

	var iErr *InferenceError
	require.ErrorAs(t, err, &iErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause.Error(), err.Error())
	assert.Empty(t, observer.observed, "failed calls are not timed")
}

func TestClassifyRecoversPanic(t *testing.T) {
	svc := newTestService(&fakePredictor{panicWith: "tensor shape mismatch"}, nil)

	_, err := svc.Classify(context.Background(), model.UploadedImage{Data: []byte{1}, Filename: "cat.jpg"}, 0)

	var iErr *InferenceError
	require.ErrorAs(t, err, &iErr)
	assert.Contains(t, err.Error(), "tensor shape mismatch")
}

func TestClassifyEmptyPredictions(t *testing.T) {
	svc := newTestService(&fakePredictor{}, nil)

	resp, err := svc.Classify(context.Background(), model.UploadedImage{Data: []byte{1}, Filename: "cat.jpg"}, 3)
	require.NoError(t, err)
	assert.NotNil(t, resp.Predictions)
	assert.Empty(t, resp.Predictions)
	assert.Zero(t, resp.Metadata.Count)
}

func TestFormat(t *testing.T) {
	resp := Format(ranked()[:3], 12.5, "mobilenet_v2")
	assert.Equal(t, 3, resp.Metadata.Count)
	assert.Equal(t, 12.5, resp.Metadata.ExecutionTimeMs)
	assert.Equal(t, "mobilenet_v2", resp.Metadata.Model)
	assert.Equal(t, "tabby", resp.Predictions[0].ClassName)
}
