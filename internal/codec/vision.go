package codec

import (
	"fmt"

	"inferd/pkg/types"
)

// vision resizes HWC pixel data to the declared input shape, scales it to
// [0,1] and adds a batch dimension.
type vision struct {
	height, width, channels int
}

func newVision(cfg types.ModelConfig) (vision, error) {
	if len(cfg.InputShape) == 0 {
		return vision{}, nil
	}
	if len(cfg.InputShape) != 3 {
		return vision{}, fmt.Errorf("vision input shape must be [height width channels], got %v", cfg.InputShape)
	}
	return vision{height: cfg.InputShape[0], width: cfg.InputShape[1], channels: cfg.InputShape[2]}, nil
}

func (v vision) Preprocess(raw Raw) (Tensor, error) {
	shape := raw.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return Tensor{}, fmt.Errorf("image input needs shape [height width channels], got %v", raw.Shape)
	}
	src, err := NewTensor(shape, raw.Values)
	if err != nil {
		return Tensor{}, err
	}
	h, w, c := shape[0], shape[1], shape[2]
	if v.channels != 0 && c != v.channels {
		return Tensor{}, fmt.Errorf("image has %d channels, model expects %d", c, v.channels)
	}
	outH, outW := h, w
	if v.height != 0 {
		outH, outW = v.height, v.width
	}

	data := resizeBilinear(src.Data, h, w, c, outH, outW)
	for i := range data {
		data[i] /= 255
	}
	return Tensor{Shape: []int{1, outH, outW, c}, Data: data}, nil
}

// resizeBilinear samples with corner-aligned source coordinates
// (src = dst * in/out), clamping at the far edge.
func resizeBilinear(in []float32, h, w, c, outH, outW int) []float32 {
	out := make([]float32, outH*outW*c)
	if h == outH && w == outW {
		copy(out, in)
		return out
	}
	scaleY := float64(h) / float64(outH)
	scaleX := float64(w) / float64(outW)
	for y := 0; y < outH; y++ {
		sy := float64(y) * scaleY
		y0 := int(sy)
		y1 := min(y0+1, h-1)
		dy := float32(sy - float64(y0))
		for x := 0; x < outW; x++ {
			sx := float64(x) * scaleX
			x0 := int(sx)
			x1 := min(x0+1, w-1)
			dx := float32(sx - float64(x0))
			for ch := 0; ch < c; ch++ {
				tl := in[(y0*w+x0)*c+ch]
				tr := in[(y0*w+x1)*c+ch]
				bl := in[(y1*w+x0)*c+ch]
				br := in[(y1*w+x1)*c+ch]
				top := tl + (tr-tl)*dx
				bottom := bl + (br-bl)*dx
				out[(y*outW+x)*c+ch] = top + (bottom-top)*dy
			}
		}
	}
	return out
}
