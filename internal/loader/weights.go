package loader

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
)

type weightValue struct {
	shape []int
	data  []float32
}

func (l *Loader) fetchWeights(ctx context.Context, groups []weightGroup, base *url.URL, f Fetcher, onProgress func(float64)) (map[string]weightValue, error) {
	type shard struct {
		group, index int
		u            *url.URL
	}
	var shards []shard
	buffers := make([][][]byte, len(groups))
	for gi, g := range groups {
		buffers[gi] = make([][]byte, len(g.Paths))
		for pi, p := range g.Paths {
			ref, err := url.Parse(p)
			if err != nil {
				return nil, fmt.Errorf("shard path %q: %w", p, err)
			}
			shards = append(shards, shard{group: gi, index: pi, u: base.ResolveReference(ref)})
		}
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.shardConcurrency)
	for _, s := range shards {
		g.Go(func() error {
			b, err := f.Fetch(gctx, s.u)
			if err != nil {
				return fmt.Errorf("fetch shard %s: %w", s.u.Redacted(), err)
			}
			mu.Lock()
			defer mu.Unlock()
			buffers[s.group][s.index] = b
			done++
			if onProgress != nil {
				onProgress(float64(done) / float64(len(shards)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]weightValue)
	for gi, grp := range groups {
		var buf []byte
		for _, b := range buffers[gi] {
			buf = append(buf, b...)
		}
		off := 0
		for _, w := range grp.Weights {
			if w.Dtype != "" && w.Dtype != "float32" {
				return nil, fmt.Errorf("weight %s: unsupported dtype %q", w.Name, w.Dtype)
			}
			n, ok := elementCount(w.Shape, (len(buf)-off)/4)
			if !ok {
				return nil, fmt.Errorf("weight %s: shape %v exceeds the %d bytes left in its shards", w.Name, w.Shape, len(buf)-off)
			}
			data := make([]float32, n)
			for i := range data {
				data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+i*4:]))
			}
			off += n * 4
			out[w.Name] = weightValue{shape: append([]int(nil), w.Shape...), data: data}
		}
		if off != len(buf) {
			return nil, fmt.Errorf("weight group %d: %d trailing bytes", gi, len(buf)-off)
		}
	}
	return out, nil
}

// elementCount multiplies shape out, failing once the product passes limit.
func elementCount(shape []int, limit int) (int, bool) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d > 0 && n > limit/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
