package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"inferd/internal/catalog"
	"inferd/internal/httpapi"
	"inferd/internal/loader"
	"inferd/internal/loader/loadertest"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

// modelHost serves model files and counts requests per path.
type modelHost struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	srv   *httptest.Server
}

func newModelHost(t *testing.T) *modelHost {
	t.Helper()
	h := &modelHost{files: map[string][]byte{}, hits: map[string]int{}}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.URL.Path]++
		b, ok := h.files[r.URL.Path]
		h.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

// addLayers publishes a layered model under /<dir>/model.json.
func (h *modelHost) addLayers(dir string, layers ...loadertest.Dense) string {
	manifest, shard := loadertest.LayersModel(layers...)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files["/"+dir+"/model.json"] = manifest
	h.files["/"+dir+"/weights.bin"] = shard
	return h.srv.URL + "/" + dir + "/model.json"
}

// addGraph publishes a graph model under /<dir>/model (no .json suffix).
func (h *modelHost) addGraph(dir string, layers ...loadertest.Dense) string {
	manifest, shard := loadertest.GraphModel(layers...)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files["/"+dir+"/model"] = manifest
	h.files["/"+dir+"/weights.bin"] = shard
	return h.srv.URL + "/" + dir + "/model"
}

func (h *modelHost) hitCount(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func regression(id, source string, n int) types.ModelConfig {
	off := false
	return types.ModelConfig{
		ID: id, Type: types.TypeRegression, Source: source,
		InputShape: []int{n}, OutputShape: []int{n}, Warmup: &off,
	}
}

func newServer(t *testing.T, capacity int, models ...types.ModelConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	cat, err := catalog.New(models...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	off := false
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:  cat,
		Loader:   loader.New(),
		Capacity: capacity,
		Warmup:   &off,
	})
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res, b
}

func httpPostJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res, b
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodDelete, url, nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", url, err)
	}
	res.Body.Close()
	return res
}

func status(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	_, b := httpGet(t, base+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("status json: %v (%s)", err, b)
	}
	return st
}

func residentIDs(st types.StatusResponse) map[string]bool {
	out := map[string]bool{}
	for _, m := range st.Models {
		out[m.ModelID] = true
	}
	return out
}

func mustStatus(t *testing.T, res *http.Response, body []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("status=%d want %d body=%s", res.StatusCode, want, body)
	}
}
