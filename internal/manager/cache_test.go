package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/codec"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	if got := m.cache.capacity; got != defaultCapacity {
		t.Fatalf("expected default capacity=%d got %d", defaultCapacity, got)
	}
	if m.chunkSize != defaultBatchChunkSize {
		t.Fatalf("expected default chunk=%d got %d", defaultBatchChunkSize, m.chunkSize)
	}
	if !m.warmup {
		t.Fatalf("expected warmup on by default")
	}
	if !m.Ready() {
		t.Fatalf("new manager should be ready")
	}
}

func TestLoadModelIsIdempotent(t *testing.T) {
	fl := newFakeLoader()
	m := newTestManager(fl, 2)
	mustLoad(t, m, "a")
	mustLoad(t, m, "a")
	if n := fl.Calls("a"); n != 1 {
		t.Fatalf("expected 1 load call, got %d", n)
	}
	st := m.Stats()
	if st.Loads != 1 || len(st.Models) != 1 || st.Models[0].MemoryBytes != 40 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestEvictionScenario(t *testing.T) {
	fl := newFakeLoader()
	m := newTestManager(fl, 2)
	ctx := testCtx(t)

	mustLoad(t, m, "A")
	mustLoad(t, m, "B")
	mustLoad(t, m, "C")
	if got := m.ListLoaded(); !sameIDs(got, "B", "C") {
		t.Fatalf("after loading C expected [B C], got %v", got)
	}
	if !fl.last("A").closed.Load() {
		t.Fatalf("evicted A should be disposed")
	}

	if _, err := m.Predict(ctx, "B", input(1, 2)); err != nil {
		t.Fatalf("Predict(B): %v", err)
	}
	mustLoad(t, m, "D")
	if got := m.ListLoaded(); !sameIDs(got, "B", "D") {
		t.Fatalf("expected final resident set [B D], got %v", got)
	}
	if !fl.last("C").closed.Load() {
		t.Fatalf("evicted C should be disposed")
	}
	if ev := m.Stats().Evictions; ev != 2 {
		t.Fatalf("expected 2 evictions, got %d", ev)
	}
}

func TestCapacityInvariant(t *testing.T) {
	fl := newFakeLoader()
	m := newTestManager(fl, 3)
	for i := 0; i < 10; i++ {
		mustLoad(t, m, fmt.Sprintf("m%d", i))
		if n := len(m.ListLoaded()); n > 3 {
			t.Fatalf("resident count %d exceeds capacity after load %d", n, i)
		}
	}
	for i := 0; i < 7; i++ {
		if r := fl.last(fmt.Sprintf("m%d", i)); !r.closed.Load() {
			t.Fatalf("m%d should have been disposed", i)
		}
	}
}

func TestConcurrentLoadsShareOneCall(t *testing.T) {
	fl := newFakeLoader()
	fl.gate = make(chan struct{})
	m := NewWithConfig(ManagerConfig{Loader: fl, Capacity: 2})
	ctx := testCtx(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.LoadModel(ctx, testCfg("a"), LoadOptions{})
			errs <- err
		}()
	}
	<-fl.started
	time.Sleep(20 * time.Millisecond)
	close(fl.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("LoadModel: %v", err)
		}
	}
	if n := fl.Calls("a"); n != 1 {
		t.Fatalf("expected exactly 1 load, got %d", n)
	}
	if runs := fl.last("a").runs.Load(); runs != 1 {
		t.Fatalf("expected one warmup run for a fresh load, got %d", runs)
	}
}

func TestLoadFailureReachesEveryWaiter(t *testing.T) {
	fl := newFakeLoader()
	fl.gate = make(chan struct{})
	fl.err = errors.New("network down")
	m := newTestManager(fl, 2)
	ctx := testCtx(t)

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := m.LoadModel(ctx, testCfg("a"), LoadOptions{})
			errs <- err
		}()
	}
	<-fl.started
	time.Sleep(20 * time.Millisecond)
	close(fl.gate)
	for i := 0; i < 3; i++ {
		if err := <-errs; err == nil || err.Error() != "network down" {
			t.Fatalf("expected loader error, got %v", err)
		}
	}
	if m.cache.Resident("a") {
		t.Fatalf("failed load must not leave an entry")
	}

	fl.mu.Lock()
	fl.err = nil
	fl.mu.Unlock()
	mustLoad(t, m, "a")
	if n := fl.Calls("a"); n != 2 {
		t.Fatalf("a failed load must not be cached; calls=%d", n)
	}
}

func TestLoaderPanicBecomesError(t *testing.T) {
	fl := newFakeLoader()
	fl.panicMsg = "boom"
	m := newTestManager(fl, 2)
	_, err := m.LoadModel(testCtx(t), testCfg("a"), LoadOptions{})
	if err == nil {
		t.Fatalf("expected error from panicking loader")
	}
}

func TestCanceledWaiterDoesNotAbortLoad(t *testing.T) {
	fl := newFakeLoader()
	fl.gate = make(chan struct{})
	m := newTestManager(fl, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := m.LoadModel(ctx, testCfg("a"), LoadOptions{})
		errc <- err
	}()
	<-fl.started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(fl.gate)
	waitFor(t, "a resident", func() bool { return m.cache.Resident("a") })

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.ctxErr != nil {
		t.Fatalf("loader context should outlive the caller, got %v", fl.ctxErr)
	}
}

func TestBusyModelIsNotEvicted(t *testing.T) {
	fl := newFakeLoader()
	release := make(chan struct{})
	running := make(chan struct{}, 1)
	fl.run = func(ctx context.Context, in codec.Tensor) (codec.Tensor, error) {
		running <- struct{}{}
		<-release
		return in, nil
	}
	m := newTestManager(fl, 1)
	ctx := testCtx(t)
	mustLoad(t, m, "a")

	done := make(chan error, 1)
	go func() {
		_, err := m.Predict(ctx, "a", input(1, 2))
		done <- err
	}()
	<-running

	mustLoad(t, m, "b")
	if got := m.ListLoaded(); !sameIDs(got, "a", "b") {
		t.Fatalf("busy a must stay resident (overflow); got %v", got)
	}
	if fl.last("a").closed.Load() {
		t.Fatalf("busy a must not be disposed")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Predict(a): %v", err)
	}
	if got := m.ListLoaded(); !sameIDs(got, "b") {
		t.Fatalf("deferred eviction should leave [b], got %v", got)
	}
	if !fl.last("a").closed.Load() {
		t.Fatalf("a should be disposed after its prediction finished")
	}
}

func TestDisposeErrorIsLogged(t *testing.T) {
	fl := newFakeLoader()
	fl.closeErr = errors.New("close failed")
	var buf syncBuffer
	log := zerolog.New(&buf)
	m := NewWithConfig(ManagerConfig{Loader: fl, Capacity: 1, Warmup: boolPtr(false), Logger: &log})
	mustLoad(t, m, "a")
	mustLoad(t, m, "b")
	if m.cache.Resident("a") {
		t.Fatalf("a should be gone despite the dispose error")
	}
	if !strings.Contains(buf.String(), "dispose failed") {
		t.Fatalf("expected dispose failure in logs, got %q", buf.String())
	}
}

func TestRunningAverage(t *testing.T) {
	c := newModelCache(2, newFakeLoader(), zerolog.Nop(), noopPublisher{}, newCacheMetrics())
	rm := &residentModel{id: "a", resource: &fakeResource{}, busy: 3}
	c.models["a"] = rm
	c.inflight = 3

	c.complete(rm, 10*time.Millisecond, true)
	c.complete(rm, 20*time.Millisecond, true)
	c.complete(rm, time.Second, false)
	if rm.usageCount != 2 {
		t.Fatalf("expected usage 2, got %d", rm.usageCount)
	}
	if rm.avgLatency != 15*time.Millisecond {
		t.Fatalf("expected avg 15ms, got %v", rm.avgLatency)
	}
	if rm.busy != 0 || c.inflight != 0 {
		t.Fatalf("busy counters not released: busy=%d inflight=%d", rm.busy, c.inflight)
	}
}
