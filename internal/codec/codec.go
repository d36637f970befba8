// Package codec converts caller input into model tensors and model output into
// typed results. A Codec is chosen once per model from its ModelConfig; every
// implementation is stateless and safe for concurrent use.
package codec

import (
	"fmt"
	"strings"

	"inferd/pkg/types"
)

// Result is the typed output of a prediction.
type Result struct {
	Predictions   []float64
	Probabilities []float64
	Labels        []string
	Confidence    *float64
}

// Preprocessor turns raw input into the tensor a model expects.
type Preprocessor interface {
	Preprocess(raw Raw) (Tensor, error)
}

// Postprocessor turns raw model output into a Result.
type Postprocessor interface {
	Postprocess(out Tensor) (Result, error)
}

// Codec pairs a preprocessor with a postprocessor.
type Codec interface {
	Preprocessor
	Postprocessor
	// Name identifies the pairing, e.g. "vision+softmax".
	Name() string
}

type pipeline struct {
	pre      Preprocessor
	post     Postprocessor
	preName  string
	postName string
}

func (p pipeline) Preprocess(raw Raw) (Tensor, error) { return p.pre.Preprocess(raw) }
func (p pipeline) Postprocess(out Tensor) (Result, error) { return p.post.Postprocess(out) }
func (p pipeline) Name() string { return p.preName + "+" + p.postName }

// For selects the codec for cfg. The input side follows the type tag, falling
// back to the preprocessor hint prefix (image-, text-, audio-); the output side
// follows the postprocessor hint, falling back to the type tag.
func For(cfg types.ModelConfig) (Codec, error) {
	p := pipeline{}
	switch inputKind(cfg) {
	case "vision":
		v, err := newVision(cfg)
		if err != nil {
			return nil, err
		}
		p.pre, p.preName = v, "vision"
	case "text":
		p.pre, p.preName = newText(cfg), "text"
	case "audio":
		p.pre, p.preName = newAudio(cfg), "audio"
	default:
		p.pre, p.preName = passthrough{inputShape: cfg.InputShape}, "passthrough"
	}

	switch hint := strings.ToLower(strings.TrimSpace(cfg.Postprocessor)); hint {
	case "softmax", "classification":
		p.post, p.postName = softmax{labels: cfg.Labels}, "softmax"
	case "identity", "none", "raw":
		p.post, p.postName = identity{}, "identity"
	case "":
		if cfg.Type == types.TypeClassification {
			p.post, p.postName = softmax{labels: cfg.Labels}, "softmax"
		} else {
			p.post, p.postName = identity{}, "identity"
		}
	default:
		return nil, fmt.Errorf("unknown postprocessor %q", cfg.Postprocessor)
	}
	return p, nil
}

func inputKind(cfg types.ModelConfig) string {
	switch cfg.Type {
	case types.TypeVision:
		return "vision"
	case types.TypeText:
		return "text"
	case types.TypeAudio:
		return "audio"
	case types.TypeTabular:
		return "passthrough"
	}
	hint := strings.ToLower(cfg.Preprocessor)
	switch {
	case strings.HasPrefix(hint, "image-"), strings.HasPrefix(hint, "face-"):
		return "vision"
	case strings.HasPrefix(hint, "text-"):
		return "text"
	case strings.HasPrefix(hint, "audio-"):
		return "audio"
	}
	return "passthrough"
}

// passthrough feeds numeric input unchanged, reshaped to the declared input
// shape when the element counts agree.
type passthrough struct {
	inputShape []int
}

func (p passthrough) Preprocess(raw Raw) (Tensor, error) {
	t, err := raw.Tensor()
	if err != nil {
		return Tensor{}, err
	}
	if n, err := ShapeSize(p.inputShape); err == nil && n == t.Size() {
		t.Shape = append([]int{1}, p.inputShape...)
	}
	return t, nil
}
