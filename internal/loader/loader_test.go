package loader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/internal/codec"
	"inferd/internal/loader/loadertest"
	"inferd/pkg/types"
)

func twoLayer() []loadertest.Dense {
	return []loadertest.Dense{
		loadertest.Identity("dense_1", 2),
		{Name: "dense_2", In: 2, Out: 1, Kernel: []float32{1, 2}, Bias: []float32{0.5}, Activation: "relu"},
	}
}

func TestLoadLayersOverHTTP(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/m/model.json": manifest, "/m/weights.bin": shard})

	var last float64
	res, err := New().Load(context.Background(), types.ModelConfig{ID: "m", Source: srv.URL + "/m/model.json"},
		LoadOptions{OnProgress: func(f float64) { last = f }})
	require.NoError(t, err)
	assert.Equal(t, 1.0, last)
	assert.Equal(t, int64(4+2+2+1), res.ParamCount())

	out, err := res.Run(context.Background(), codec.Tensor{Shape: []int{1, 2}, Data: []float32{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, out.Shape)
	assert.InDelta(t, 11.5, out.Data[0], 1e-6)

	out, err = res.Run(context.Background(), codec.Tensor{Shape: []int{2, 2}, Data: []float32{3, 4, -3, -4}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, out.Shape)
	assert.Equal(t, float32(0), out.Data[1])
}

func TestGraphTriedFirstWithoutJSONSuffix(t *testing.T) {
	manifest, shard := loadertest.GraphModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/g/model.pb": manifest, "/g/weights.bin": shard})

	res, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/g/model.pb"}, LoadOptions{})
	require.NoError(t, err)
	out, err := res.Run(context.Background(), codec.Tensor{Data: []float32{3, 4}})
	require.NoError(t, err)
	assert.InDelta(t, 11.5, out.Data[0], 1e-6)
}

func TestFallbackToGraphAfterLayersFails(t *testing.T) {
	manifest, shard := loadertest.GraphModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/model.json": manifest, "/weights.bin": shard})

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	require.NoError(t, err)
}

func TestDeclaredFormatSkipsOtherDecoder(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/model.bin": manifest, "/weights.bin": shard})

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.bin"}, LoadOptions{})
	require.NoError(t, err)
}

func TestBothFormatsFail(t *testing.T) {
	srv := loadertest.Serve(t, map[string][]byte{"/bad.json": []byte(`{"hello":"world"}`)})

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/bad.json"}, LoadOptions{})
	require.Error(t, err)
	assert.True(t, IsLoadFailed(err))

	var lf *LoadFailedError
	require.True(t, errors.As(err, &lf))
	require.Len(t, lf.Attempts, 2)
	assert.Equal(t, FormatLayers, lf.Attempts[0].Format)
	assert.Equal(t, FormatGraph, lf.Attempts[1].Format)
	assert.Contains(t, err.Error(), "layers-model")
	assert.Contains(t, err.Error(), "graph-model")
}

func TestManifestFetchedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/missing.json"}, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestMissingShard(t *testing.T) {
	manifest, _ := loadertest.LayersModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/model.json": manifest})

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch shard")
}

func TestShardSizeMismatch(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/model.json": manifest, "/weights.bin": append(shard, 0, 0, 0, 0)})

	_, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestOversizedWeightShapeIsAnAttemptError(t *testing.T) {
	manifest := []byte(`{
		"format": "layers-model",
		"modelTopology": {"class_name": "Sequential", "config": {"name": "seq", "layers": [
			{"class_name": "Dense", "config": {"name": "dense_1", "units": 1, "use_bias": false}}
		]}},
		"weightsManifest": [{"paths": ["weights.bin"], "weights": [
			{"name": "dense_1/kernel", "shape": [4611686018427387905, 1], "dtype": "float32"}
		]}]
	}`)
	srv := loadertest.Serve(t, map[string][]byte{"/model.json": manifest, "/weights.bin": loadertest.Shard([]float32{1})})

	var (
		res Resource
		err error
	)
	require.NotPanics(t, func() {
		res, err = New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsLoadFailed(err))

	var lf *LoadFailedError
	require.True(t, errors.As(err, &lf))
	require.Len(t, lf.Attempts, 2)
	assert.Contains(t, lf.Attempts[0].Err.Error(), "exceeds")
}

func TestElementCount(t *testing.T) {
	n, ok := elementCount([]int{2, 3}, 6)
	assert.True(t, ok)
	assert.Equal(t, 6, n)

	n, ok = elementCount([]int{0, 1 << 62}, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok = elementCount([]int{2, 3}, 5)
	assert.False(t, ok)
	_, ok = elementCount([]int{4611686018427387905, 1}, 1)
	assert.False(t, ok)
	_, ok = elementCount([]int{-1}, 10)
	assert.False(t, ok)
}

func TestShardConcurrencyLimit(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	var m map[string]any
	require.NoError(t, json.Unmarshal(manifest, &m))
	group := m["weightsManifest"].([]any)[0].(map[string]any)
	group["paths"] = []string{"s0.bin", "s1.bin", "s2.bin"}
	manifest, err := json.Marshal(m)
	require.NoError(t, err)

	third := len(shard) / 3
	parts := map[string][]byte{
		"/s0.bin": shard[:third],
		"/s1.bin": shard[third : 2*third],
		"/s2.bin": shard[2*third:],
	}
	var active, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/model.json" {
			_, _ = w.Write(manifest)
			return
		}
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write(parts[r.URL.Path])
	}))
	defer srv.Close()

	res, err := New(WithShardConcurrency(1)).Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(4+2+2+1), res.ParamCount())
	assert.Equal(t, int32(1), peak.Load())
}

func TestLoadFromLocalPath(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	dir := loadertest.WriteDir(t, map[string][]byte{"model.json": manifest, "weights.bin": shard})

	res, err := New().Load(context.Background(), types.ModelConfig{Source: dir + "/model.json"}, LoadOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Close())

	_, err = res.Run(context.Background(), codec.Tensor{Data: []float32{1, 1}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunRejectsWrongWidth(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	srv := loadertest.Serve(t, map[string][]byte{"/model.json": manifest, "/weights.bin": shard})
	res, err := New().Load(context.Background(), types.ModelConfig{Source: srv.URL + "/model.json"}, LoadOptions{})
	require.NoError(t, err)

	_, err = res.Run(context.Background(), codec.Tensor{Data: []float32{1, 2, 3}})
	assert.ErrorContains(t, err, "multiple of 2")
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := New().Load(context.Background(), types.ModelConfig{Source: "ftp://host/model.json"}, LoadOptions{})
	require.Error(t, err)
	assert.True(t, IsLoadFailed(err))
	assert.Contains(t, err.Error(), "no fetcher")
}

func TestFormatOrder(t *testing.T) {
	u, _ := url.Parse("https://x/y/MODEL.JSON")
	assert.Equal(t, []Format{FormatLayers, FormatGraph}, FormatOrder(u))
	u, _ = url.Parse("https://x/y/model")
	assert.Equal(t, []Format{FormatGraph, FormatLayers}, FormatOrder(u))
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func TestLoadFromS3(t *testing.T) {
	manifest, shard := loadertest.LayersModel(twoLayer()...)
	s3f := NewS3Fetcher(fakeS3{objects: map[string][]byte{
		"models/iris/model.json":  manifest,
		"models/iris/weights.bin": shard,
	}})
	l := New(WithFetcher("s3", s3f))

	res, err := l.Load(context.Background(), types.ModelConfig{Source: "s3://models/iris/model.json"}, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.ParamCount())

	_, err = s3f.Fetch(context.Background(), &url.URL{Scheme: "s3", Host: "models"})
	assert.Error(t, err)
}
