package manager

import (
	"time"

	"inferd/internal/codec"
)

// State is the coordinator lifecycle state.
type State string

const (
	StateReady    State = "ready"
	StateShutdown State = "shutdown"
)

// LoadOptions tune a single LoadModel call.
type LoadOptions struct {
	// Warmup overrides both the model's and the manager's warmup setting.
	Warmup *bool
	// OnProgress receives the fraction of weight shards fetched. Only the
	// caller that starts a load gets progress callbacks.
	OnProgress func(fraction float64)
}

// PredictionInput is one inference request.
type PredictionInput struct {
	Data codec.Raw
	// Preprocessed feeds Data to the model as a tensor, skipping the codec's
	// preprocessor.
	Preprocessed bool
}

// PredictionOutput is the typed result of one inference.
type PredictionOutput struct {
	Predictions    []float64
	Probabilities  []float64
	Labels         []string
	Confidence     *float64
	ProcessingTime time.Duration
}

// ModelStats is a point-in-time copy of one resident model's bookkeeping.
type ModelStats struct {
	ID          string
	LoadedAt    time.Time
	LastUsed    time.Time
	UsageCount  uint64
	AvgLatency  time.Duration
	MemoryBytes int64
	Inflight    int
}

// CacheStats summarizes the resident set.
type CacheStats struct {
	Models      []ModelStats
	Capacity    int
	MemoryBytes int64
	Loads       uint64
	Evictions   uint64
}
