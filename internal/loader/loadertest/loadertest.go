// Package loadertest builds small model manifests and weight shards for tests.
package loadertest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// Dense describes one dense layer: Kernel is row-major [In, Out].
type Dense struct {
	Name       string
	In, Out    int
	Kernel     []float32
	Bias       []float32
	Activation string
}

// Shard encodes values as little-endian float32.
func Shard(values ...[]float32) []byte {
	var n int
	for _, v := range values {
		n += len(v)
	}
	buf := make([]byte, 0, n*4)
	for _, v := range values {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func weightEntries(layers []Dense, kernelName, biasName func(Dense) string) ([]map[string]any, []byte) {
	var (
		specs  []map[string]any
		values [][]float32
	)
	for _, l := range layers {
		specs = append(specs, map[string]any{"name": kernelName(l), "shape": []int{l.In, l.Out}, "dtype": "float32"})
		values = append(values, l.Kernel)
		if l.Bias != nil {
			specs = append(specs, map[string]any{"name": biasName(l), "shape": []int{l.Out}, "dtype": "float32"})
			values = append(values, l.Bias)
		}
	}
	return specs, Shard(values...)
}

// LayersModel returns a layered manifest referencing shard "weights.bin" and
// the shard bytes.
func LayersModel(layers ...Dense) (manifest, shard []byte) {
	var topo []map[string]any
	for _, l := range layers {
		topo = append(topo, map[string]any{
			"class_name": "Dense",
			"config": map[string]any{
				"name":       l.Name,
				"units":      l.Out,
				"activation": l.Activation,
				"use_bias":   l.Bias != nil,
			},
		})
	}
	specs, shard := weightEntries(layers,
		func(l Dense) string { return l.Name + "/kernel" },
		func(l Dense) string { return l.Name + "/bias" })
	m := map[string]any{
		"format":        "layers-model",
		"modelTopology": map[string]any{"class_name": "Sequential", "config": map[string]any{"name": "seq", "layers": topo}},
		"weightsManifest": []map[string]any{
			{"paths": []string{"weights.bin"}, "weights": specs},
		},
	}
	manifest, _ = json.Marshal(m)
	return manifest, shard
}

// GraphModel returns a graph manifest (no declared format) referencing shard
// "weights.bin" and the shard bytes.
func GraphModel(layers ...Dense) (manifest, shard []byte) {
	nodes := []map[string]any{{"name": "input", "op": "Placeholder"}}
	prev := "input"
	for i, l := range layers {
		w, b := fmt.Sprintf("w%d", i), fmt.Sprintf("b%d", i)
		mm := fmt.Sprintf("matmul%d", i)
		nodes = append(nodes,
			map[string]any{"name": w, "op": "Const"},
			map[string]any{"name": mm, "op": "MatMul", "input": []string{prev, w}})
		prev = mm
		if l.Bias != nil {
			add := fmt.Sprintf("add%d", i)
			nodes = append(nodes,
				map[string]any{"name": b, "op": "Const"},
				map[string]any{"name": add, "op": "BiasAdd", "input": []string{prev, b + ":0"}})
			prev = add
		}
		if l.Activation != "" && l.Activation != "linear" {
			op := map[string]string{"relu": "Relu", "sigmoid": "Sigmoid", "tanh": "Tanh", "softmax": "Softmax"}[l.Activation]
			act := fmt.Sprintf("act%d", i)
			nodes = append(nodes, map[string]any{"name": act, "op": op, "input": []string{prev}})
			prev = act
		}
	}
	idx := map[string]int{}
	for i, l := range layers {
		idx[l.Name] = i
	}
	specs, shard := weightEntries(layers,
		func(l Dense) string { return fmt.Sprintf("w%d", idx[l.Name]) },
		func(l Dense) string { return fmt.Sprintf("b%d", idx[l.Name]) })
	m := map[string]any{
		"modelTopology":   map[string]any{"node": nodes},
		"weightsManifest": []map[string]any{{"paths": []string{"weights.bin"}, "weights": specs}},
	}
	manifest, _ = json.Marshal(m)
	return manifest, shard
}

// Identity returns a single linear layer mapping n inputs to themselves.
func Identity(name string, n int) Dense {
	k := make([]float32, n*n)
	for i := 0; i < n; i++ {
		k[i*n+i] = 1
	}
	return Dense{Name: name, In: n, Out: n, Kernel: k, Bias: make([]float32, n)}
}

// Serve serves files by path and closes the server when the test ends.
func Serve(t testing.TB, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// WriteDir writes files into a fresh temp dir and returns it.
func WriteDir(t testing.TB, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, b := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, b, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}
