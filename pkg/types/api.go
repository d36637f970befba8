package types

// PredictRequest is the payload of POST /models/{id}/predict.
type PredictRequest struct {
	// Flattened numeric input (pixels, samples, features or token ids).
	// example: [0.1,0.5,0.9]
	Values []float32 `json:"values,omitempty"`
	// Shape of Values. Omitted means a flat vector.
	// example: [3]
	Shape []int `json:"shape,omitempty"`
	// Raw text for text models.
	// example: what a wonderful film
	Text string `json:"text,omitempty" example:"what a wonderful film"`
	// Sample rate of Values for audio models.
	// example: 44100
	SampleRate int `json:"sample_rate,omitempty" example:"44100"`
	// If true, Values/Shape are fed to the model as-is.
	// example: false
	Preprocessed bool `json:"preprocessed,omitempty" example:"false"`
}

// PredictResponse is returned by the predict and batch endpoints.
type PredictResponse struct {
	// Predicted class index for classifiers, raw output otherwise.
	Predictions []float64 `json:"predictions"`
	// Softmax distribution for classifiers.
	Probabilities []float64 `json:"probabilities,omitempty"`
	// Label of the predicted class, when the model declares labels.
	Labels []string `json:"labels,omitempty"`
	// Probability of the predicted class.
	// example: 0.91
	Confidence *float64 `json:"confidence,omitempty" example:"0.91"`
	// Wall time spent inside the coordinator in milliseconds.
	// example: 3.2
	ProcessingTimeMs float64 `json:"processing_time_ms" example:"3.2"`
}

// BatchRequest is the payload of POST /models/{id}/batch.
type BatchRequest struct {
	Inputs []PredictRequest `json:"inputs"`
}

// BatchResponse holds results in input order.
type BatchResponse struct {
	Results []PredictResponse `json:"results"`
}

// LoadRequest is the optional payload of POST /models/{id}/load.
type LoadRequest struct {
	// Override the warmup setting for this load.
	// example: true
	Warmup *bool `json:"warmup,omitempty" example:"true"`
}

// ModelsResponse wraps the catalog returned by GET /models.
type ModelsResponse struct {
	// Models known to the catalog.
	Models []ModelConfig `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelStatus summarizes a resident model for /status.
type ModelStatus struct {
	// ID of the resident model.
	// example: sentiment-analysis
	ModelID string `json:"model_id" example:"sentiment-analysis"`
	// Load completion time (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last time the model was acquired or served a prediction (unix seconds).
	// example: 1700000100
	LastUsed int64 `json:"last_used_unix" example:"1700000100"`
	// Number of successful predictions.
	// example: 42
	UsageCount uint64 `json:"usage_count" example:"42"`
	// Running average of inference latency in milliseconds.
	// example: 2.5
	AvgInferenceMs float64 `json:"avg_inference_ms" example:"2.5"`
	// Estimated memory footprint in bytes (4 bytes per parameter).
	// example: 1048576
	MemoryBytes int64 `json:"memory_bytes" example:"1048576"`
	// Predictions currently running against this model.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Resident models.
	Models []ModelStatus `json:"models"`
	// Number of resident models.
	// example: 2
	TotalResident int `json:"total_resident" example:"2"`
	// Configured cache capacity.
	// example: 5
	Capacity int `json:"capacity" example:"5"`
	// Sum of estimated memory across resident models.
	// example: 2097152
	MemoryBytes int64 `json:"memory_bytes" example:"2097152"`
	// Total number of successful model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total number of LRU evictions.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Overall coordinator state (ready or shutdown).
	// example: ready
	State string `json:"state" example:"ready"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// LoadResponse is returned by a synchronous POST /models/{id}/load.
type LoadResponse struct {
	// ID of the loaded model.
	// example: sentiment-analysis
	ModelID string `json:"model_id" example:"sentiment-analysis"`
	// Estimated memory footprint in bytes.
	// example: 1048576
	MemoryBytes int64 `json:"memory_bytes" example:"1048576"`
	// Load completion time (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
}

// OperationResponse describes a background preload.
type OperationResponse struct {
	// Operation id.
	// example: 6f1c2f9e-8f9b-4c1e-9d47-2a1f0d9b1c11
	ID string `json:"id" example:"6f1c2f9e-8f9b-4c1e-9d47-2a1f0d9b1c11"`
	// Model being loaded.
	// example: sentiment-analysis
	ModelID string `json:"model_id" example:"sentiment-analysis"`
	// running, done or failed.
	// example: running
	State string `json:"state" example:"running"`
	// Failure message when State is failed.
	Error string `json:"error,omitempty"`
}
