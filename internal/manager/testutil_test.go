package manager

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inferd/internal/codec"
	"inferd/internal/loader"
	"inferd/pkg/types"
)

type runFunc func(ctx context.Context, in codec.Tensor) (codec.Tensor, error)

// fakeResource echoes its input unless run is set.
type fakeResource struct {
	id       string
	params   int64
	run      runFunc
	closeErr error
	runs     atomic.Int32
	closed   atomic.Bool
}

func (r *fakeResource) Run(ctx context.Context, in codec.Tensor) (codec.Tensor, error) {
	r.runs.Add(1)
	if r.closed.Load() {
		return codec.Tensor{}, loader.ErrClosed
	}
	if r.run != nil {
		return r.run(ctx, in)
	}
	return in, nil
}

func (r *fakeResource) ParamCount() int64 { return r.params }

func (r *fakeResource) Close() error {
	r.closed.Store(true)
	return r.closeErr
}

// fakeLoader hands out fakeResources. With gate set, every Load blocks until
// the gate is closed; started receives the id of each load as it begins.
type fakeLoader struct {
	mu       sync.Mutex
	calls    map[string]int
	made     map[string][]*fakeResource
	gate     chan struct{}
	started  chan string
	err      error
	run      runFunc
	closeErr error
	panicMsg string
	ctxErr   error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		calls:   make(map[string]int),
		made:    make(map[string][]*fakeResource),
		started: make(chan string, 64),
	}
}

func (f *fakeLoader) Load(ctx context.Context, cfg types.ModelConfig, _ loader.LoadOptions) (loader.Resource, error) {
	f.mu.Lock()
	f.calls[cfg.ID]++
	gate, err, run, panicMsg := f.gate, f.err, f.run, f.panicMsg
	f.mu.Unlock()

	f.started <- cfg.ID
	if gate != nil {
		<-gate
	}
	if panicMsg != "" {
		panic(panicMsg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	if err != nil {
		return nil, err
	}
	r := &fakeResource{id: cfg.ID, params: 10, run: run, closeErr: f.closeErr}
	f.made[cfg.ID] = append(f.made[cfg.ID], r)
	return r, nil
}

func (f *fakeLoader) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeLoader) last(id string) *fakeResource {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.made[id]
	if len(rs) == 0 {
		return nil
	}
	return rs[len(rs)-1]
}

func boolPtr(b bool) *bool { return &b }

func testCfg(id string) types.ModelConfig {
	return types.ModelConfig{ID: id, Type: types.TypeRegression, Source: "mem://" + id, InputShape: []int{2}}
}

func input(vals ...float32) PredictionInput {
	return PredictionInput{Data: codec.Raw{Values: vals}}
}

// newTestManager builds a manager over fl with warmup disabled.
func newTestManager(fl *fakeLoader, capacity int) *Manager {
	return NewWithConfig(ManagerConfig{Loader: fl, Capacity: capacity, Warmup: boolPtr(false)})
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func mustLoad(t *testing.T, m *Manager, id string) {
	t.Helper()
	if _, err := m.LoadModel(testCtx(t), testCfg(id), LoadOptions{}); err != nil {
		t.Fatalf("LoadModel(%s): %v", id, err)
	}
}

func sameIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
