package loader

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"inferd/internal/codec"
)

type denseLayer struct {
	in, out    int
	kernel     []float32 // row-major [in, out]
	bias       []float32
	activation string
}

// network is a stack of dense layers applied row by row.
type network struct {
	layers []denseLayer
	params int64
	closed atomic.Bool
}

func lookupWeight(weights map[string]weightValue, name string) (weightValue, bool) {
	if w, ok := weights[name]; ok {
		return w, true
	}
	// Exporters sometimes prefix weights with the model scope.
	for k, w := range weights {
		if strings.HasSuffix(k, "/"+name) {
			return w, true
		}
	}
	return weightValue{}, false
}

func (m *manifest) build(weights map[string]weightValue) (*network, error) {
	net := &network{}
	for i, lp := range m.plan {
		k, ok := lookupWeight(weights, lp.kernel)
		if !ok {
			return nil, fmt.Errorf("layer %s: missing weight %q", lp.name, lp.kernel)
		}
		if len(k.shape) != 2 {
			return nil, fmt.Errorf("layer %s: kernel shape %v is not 2-D", lp.name, k.shape)
		}
		layer := denseLayer{in: k.shape[0], out: k.shape[1], kernel: k.data, activation: lp.activation}
		if i > 0 && net.layers[i-1].out != layer.in {
			return nil, fmt.Errorf("layer %s: expects %d inputs, previous layer yields %d", lp.name, layer.in, net.layers[i-1].out)
		}
		if lp.bias != "" {
			b, ok := lookupWeight(weights, lp.bias)
			if !ok {
				return nil, fmt.Errorf("layer %s: missing weight %q", lp.name, lp.bias)
			}
			if len(b.data) != layer.out {
				return nil, fmt.Errorf("layer %s: bias has %d values, want %d", lp.name, len(b.data), layer.out)
			}
			layer.bias = b.data
		}
		net.params += int64(len(layer.kernel) + len(layer.bias))
		net.layers = append(net.layers, layer)
	}
	return net, nil
}

func (n *network) ParamCount() int64 { return n.params }

func (n *network) Close() error {
	n.closed.Store(true)
	return nil
}

func (n *network) Run(ctx context.Context, in codec.Tensor) (codec.Tensor, error) {
	if n.closed.Load() {
		return codec.Tensor{}, ErrClosed
	}
	width := n.layers[0].in
	if len(in.Data) == 0 || len(in.Data)%width != 0 {
		return codec.Tensor{}, fmt.Errorf("input has %d values, want a multiple of %d", len(in.Data), width)
	}
	rows := len(in.Data) / width
	cur := in.Data
	for _, l := range n.layers {
		if err := ctx.Err(); err != nil {
			return codec.Tensor{}, err
		}
		next := make([]float32, rows*l.out)
		for r := 0; r < rows; r++ {
			x := cur[r*l.in : (r+1)*l.in]
			y := next[r*l.out : (r+1)*l.out]
			if l.bias != nil {
				copy(y, l.bias)
			}
			for i, xv := range x {
				if xv == 0 {
					continue
				}
				row := l.kernel[i*l.out : (i+1)*l.out]
				for j, w := range row {
					y[j] += xv * w
				}
			}
			activate(l.activation, y)
		}
		cur = next
	}
	return codec.Tensor{Shape: []int{rows, n.layers[len(n.layers)-1].out}, Data: cur}, nil
}

func activate(name string, y []float32) {
	switch name {
	case "relu":
		for i, v := range y {
			y[i] = max(v, 0)
		}
	case "relu6":
		for i, v := range y {
			y[i] = min(max(v, 0), 6)
		}
	case "elu":
		for i, v := range y {
			if v < 0 {
				y[i] = float32(math.Expm1(float64(v)))
			}
		}
	case "sigmoid":
		for i, v := range y {
			y[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	case "tanh":
		for i, v := range y {
			y[i] = float32(math.Tanh(float64(v)))
		}
	case "softmax":
		for i, p := range codec.Softmax(y) {
			y[i] = float32(p)
		}
	}
}
