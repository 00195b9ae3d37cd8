package model

// Metadata describes an exported classification graph. It is shipped as a
// JSON file next to the .onnx weights.
type Metadata struct {
	Name         string  `json:"name"`
	InputName    string  `json:"input_name"`
	OutputName   string  `json:"output_name"`
	InputShape   []int64 `json:"input_shape"`
	OutputShape  []int64 `json:"output_shape"`
	ImageSize    int     `json:"image_size"`
	Layout       string  `json:"layout"`
	ApplySoftmax bool    `json:"apply_softmax"`
	Labels       []Label `json:"labels"`
}

// Label maps one output index of the graph to a class, e.g.
// {"id": "n02123045", "name": "tabby"}.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UploadedImage struct {
	Data     []byte
	Filename string
}

type Prediction struct {
	ClassID    string  `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

type PredictionResponse struct {
	Predictions []Prediction     `json:"predictions"`
	Metadata    ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	Model           string  `json:"model"`
	Count           int     `json:"count"`
}
