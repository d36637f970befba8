package types

// ModelType tags the family a model belongs to. It selects the codec used to
// move data in and out of the model.
type ModelType string

const (
	TypeClassification ModelType = "classification"
	TypeRegression     ModelType = "regression"
	TypeEmbedding      ModelType = "embedding"
	TypeVision         ModelType = "vision"
	TypeText           ModelType = "text"
	TypeAudio          ModelType = "audio"
	TypeTabular        ModelType = "tabular"
)

// ModelConfig describes a model the service can load. Values are treated as
// immutable once validated; the catalog only ever hands out copies.
type ModelConfig struct {
	// Stable identifier for the model.
	// example: sentiment-analysis
	ID string `json:"id" yaml:"id" toml:"id" example:"sentiment-analysis"`
	// Human-friendly name.
	// example: Sentiment Analysis
	Name string `json:"name" yaml:"name" toml:"name" example:"Sentiment Analysis"`
	// Model version (semantic version).
	// example: 1.0.0
	Version string `json:"version,omitempty" yaml:"version" toml:"version" example:"1.0.0"`
	// Type tag: classification, regression, embedding, vision, text, audio or tabular.
	// example: classification
	Type ModelType `json:"type" yaml:"type" toml:"type" example:"classification"`
	// Source locator of the model manifest (http, https, s3, file or a local path).
	// example: https://storage.googleapis.com/tfjs-models/sentiment/model.json
	Source string `json:"source" yaml:"source" toml:"source" example:"https://storage.googleapis.com/tfjs-models/sentiment/model.json"`
	// Declared input shape without the batch dimension.
	// example: [100]
	InputShape []int `json:"input_shape,omitempty" yaml:"input_shape" toml:"input_shape"`
	// Declared output shape without the batch dimension.
	// example: [2]
	OutputShape []int `json:"output_shape,omitempty" yaml:"output_shape" toml:"output_shape"`
	// Class labels indexed by output position.
	// example: ["negative","positive"]
	Labels []string `json:"labels,omitempty" yaml:"labels" toml:"labels"`
	// Run one throwaway inference right after loading. Unset uses the server default.
	// example: true
	Warmup *bool `json:"warmup,omitempty" yaml:"warmup" toml:"warmup"`
	// Preprocessing hint, e.g. image-resize-normalize, text-sequence, audio-normalize.
	// example: text-sequence
	Preprocessor string `json:"preprocessor,omitempty" yaml:"preprocessor" toml:"preprocessor" example:"text-sequence"`
	// Postprocessing hint: softmax or identity.
	// example: softmax
	Postprocessor string `json:"postprocessor,omitempty" yaml:"postprocessor" toml:"postprocessor" example:"softmax"`
	// Token vocabulary for text models. Missing tokens map to 1 (<UNK>), padding is 0.
	Vocabulary map[string]int `json:"vocabulary,omitempty" yaml:"vocabulary" toml:"vocabulary"`
	// Target sample rate in Hz for audio models (default 16000).
	// example: 16000
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate" toml:"sample_rate" example:"16000"`
	// Free-form descriptive metadata.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata" toml:"metadata"`
}

// Clone returns a deep copy so callers cannot mutate shared slices or maps.
func (c ModelConfig) Clone() ModelConfig {
	out := c
	out.InputShape = append([]int(nil), c.InputShape...)
	out.OutputShape = append([]int(nil), c.OutputShape...)
	out.Labels = append([]string(nil), c.Labels...)
	if c.Warmup != nil {
		w := *c.Warmup
		out.Warmup = &w
	}
	if c.Vocabulary != nil {
		out.Vocabulary = make(map[string]int, len(c.Vocabulary))
		for k, v := range c.Vocabulary {
			out.Vocabulary[k] = v
		}
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
