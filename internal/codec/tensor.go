package codec

import (
	"fmt"
	"math/rand/v2"
)

// Tensor is a dense float32 array with a row-major shape.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor checks that the shape matches the data length.
func NewTensor(shape []int, data []float32) (Tensor, error) {
	n, err := ShapeSize(shape)
	if err != nil {
		return Tensor{}, err
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("shape %v wants %d values, got %d", shape, n, len(data))
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Size is the number of elements.
func (t Tensor) Size() int { return len(t.Data) }

// MaxElements bounds the element count of any single tensor.
const MaxElements = 1 << 26

// ShapeSize returns the element count of shape. All dims must be positive and
// the product may not exceed MaxElements.
func ShapeSize(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dimension %d in shape %v", d, shape)
		}
		if d > MaxElements/n {
			return 0, fmt.Errorf("shape %v exceeds %d elements", shape, MaxElements)
		}
		n *= d
	}
	return n, nil
}

// Raw is caller-facing input before preprocessing.
type Raw struct {
	Values     []float32
	Shape      []int
	Text       string
	SampleRate int
}

// Tensor interprets Values/Shape directly. A missing shape becomes a single
// row [1, len(Values)].
func (r Raw) Tensor() (Tensor, error) {
	if len(r.Values) == 0 {
		return Tensor{}, fmt.Errorf("no input values")
	}
	if len(r.Shape) == 0 {
		return Tensor{Shape: []int{1, len(r.Values)}, Data: r.Values}, nil
	}
	return NewTensor(r.Shape, r.Values)
}

// RandomNormal builds a tensor of standard normal samples. Used for warmup.
func RandomNormal(shape []int, rng *rand.Rand) (Tensor, error) {
	n, err := ShapeSize(shape)
	if err != nil {
		return Tensor{}, err
	}
	data := make([]float32, n)
	for i := range data {
		if rng != nil {
			data[i] = float32(rng.NormFloat64())
		} else {
			data[i] = float32(rand.NormFloat64())
		}
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}
