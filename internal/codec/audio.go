package codec

import (
	"fmt"
	"math"

	"inferd/pkg/types"
)

const defaultSampleRate = 16000

// audio resamples to the target rate, normalizes to zero mean and unit
// variance, then pads or trims to a declared 1-D length.
type audio struct {
	rate   int
	length int
}

func newAudio(cfg types.ModelConfig) audio {
	a := audio{rate: cfg.SampleRate}
	if a.rate <= 0 {
		a.rate = defaultSampleRate
	}
	if len(cfg.InputShape) == 1 {
		a.length = cfg.InputShape[0]
	}
	return a
}

func (a audio) Preprocess(raw Raw) (Tensor, error) {
	if len(raw.Values) == 0 {
		return Tensor{}, fmt.Errorf("audio input is empty")
	}
	samples := raw.Values
	if raw.SampleRate > 0 && raw.SampleRate != a.rate {
		samples = Resample(samples, raw.SampleRate, a.rate)
	}
	samples = Normalize(samples)
	if a.length > 0 {
		fitted := make([]float32, a.length)
		copy(fitted, samples)
		samples = fitted
	}
	return Tensor{Shape: []int{1, len(samples)}, Data: samples}, nil
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(to) / float64(from)
	n := int(math.Round(float64(len(samples)) * ratio))
	out := make([]float32, n)
	last := len(samples) - 1
	for i := range out {
		src := float64(i) / ratio
		lo := int(math.Floor(src))
		if lo > last {
			lo = last
		}
		hi := min(int(math.Ceil(src)), last)
		frac := float32(src - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}

// Normalize returns a zero-mean, unit-variance copy of samples.
func Normalize(samples []float32) []float32 {
	var mean float64
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(len(samples))
	var variance float64
	for _, s := range samples {
		d := float64(s) - mean
		variance += d * d
	}
	std := math.Sqrt(variance/float64(len(samples))) + 1e-10
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32((float64(s) - mean) / std)
	}
	return out
}
