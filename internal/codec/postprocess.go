package codec

import (
	"fmt"
	"math"
)

// softmax turns logits into a distribution and picks the arg-max class.
type softmax struct {
	labels []string
}

func (s softmax) Postprocess(out Tensor) (Result, error) {
	if len(out.Data) == 0 {
		return Result{}, fmt.Errorf("empty model output")
	}
	probs := Softmax(out.Data)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	conf := probs[best]
	r := Result{
		Predictions:   []float64{float64(best)},
		Probabilities: probs,
		Confidence:    &conf,
	}
	if best < len(s.labels) {
		r.Labels = []string{s.labels[best]}
	}
	return r, nil
}

// identity returns the raw output vector.
type identity struct{}

func (identity) Postprocess(out Tensor) (Result, error) {
	preds := make([]float64, len(out.Data))
	for i, v := range out.Data {
		preds[i] = float64(v)
	}
	return Result{Predictions: preds}, nil
}

// Softmax subtracts the max before exponentiating so large logits stay finite.
func Softmax(logits []float32) []float64 {
	maxVal := math.Inf(-1)
	for _, v := range logits {
		maxVal = math.Max(maxVal, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
