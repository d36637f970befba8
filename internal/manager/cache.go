package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"inferd/internal/codec"
	"inferd/internal/loader"
	"inferd/pkg/types"
)

// bytesPerParam is the memory estimate for one float32 weight.
const bytesPerParam = 4

// residentModel is a loaded model owned by the cache. Fields below mu are
// only touched with ModelCache.mu held; cfg, codec and resource never change
// after insertion.
type residentModel struct {
	id       string
	cfg      types.ModelConfig
	codec    codec.Codec
	resource loader.Resource

	loadedAt    time.Time
	memoryBytes int64

	lastUsed   time.Time
	tick       uint64 // logical LRU clock, strictly increasing per touch
	usageCount uint64
	avgLatency time.Duration
	busy       int
	orphaned   bool // removed from the table while busy; disposed on last release
}

func (rm *residentModel) stats() ModelStats {
	return ModelStats{
		ID:          rm.id,
		LoadedAt:    rm.loadedAt,
		LastUsed:    rm.lastUsed,
		UsageCount:  rm.usageCount,
		AvgLatency:  rm.avgLatency,
		MemoryBytes: rm.memoryBytes,
		Inflight:    rm.busy,
	}
}

// ModelCache holds at most capacity resident models, loading them on demand.
// Concurrent acquires for the same id share one load.
type ModelCache struct {
	loader  Loader
	log     zerolog.Logger
	pub     EventPublisher
	metrics *cacheMetrics
	loads   singleflight.Group
	// warm runs inside the shared load once the model is resident, before
	// any waiter is released.
	warm func(ctx context.Context, cfg types.ModelConfig, opts LoadOptions)

	mu        sync.Mutex
	capacity  int
	models    map[string]*residentModel
	tick      uint64
	inflight  int
	closed    bool
	drained   chan struct{} // closed once inflight reaches zero after close
	loadCount uint64
	evictions uint64
}

func newModelCache(capacity int, l Loader, log zerolog.Logger, pub EventPublisher, metrics *cacheMetrics) *ModelCache {
	return &ModelCache{
		loader:   l,
		log:      log,
		pub:      pub,
		metrics:  metrics,
		capacity: capacity,
		models:   make(map[string]*residentModel),
	}
}

func (c *ModelCache) touchLocked(rm *residentModel) {
	c.tick++
	rm.tick = c.tick
	rm.lastUsed = time.Now()
}

// Acquire makes cfg resident. A resident model is touched and returned
// immediately; otherwise the caller joins (or starts) the load for cfg.ID.
// A caller whose ctx ends stops waiting but the load, warmup included,
// carries on.
func (c *ModelCache) Acquire(ctx context.Context, cfg types.ModelConfig, cd codec.Codec, opts LoadOptions) (ModelStats, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ModelStats{}, ErrShutdown
	}
	if rm, ok := c.models[cfg.ID]; ok {
		c.touchLocked(rm)
		st := rm.stats()
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(cfg.ID, func() (any, error) {
		return c.load(loadCtx, cfg, cd, opts)
	})
	select {
	case <-ctx.Done():
		return ModelStats{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return ModelStats{}, r.Err
		}
		return r.Val.(ModelStats), nil
	}
}

func (c *ModelCache) load(ctx context.Context, cfg types.ModelConfig, cd codec.Codec, opts LoadOptions) (ModelStats, error) {
	// A load may have completed between the caller's miss and this call.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ModelStats{}, ErrShutdown
	}
	if rm, ok := c.models[cfg.ID]; ok {
		c.touchLocked(rm)
		st := rm.stats()
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	c.log.Info().Str("model", cfg.ID).Str("source", cfg.Source).Msg("load start")
	c.pub.Publish(Event{Name: EventLoadStart, ModelID: cfg.ID, Fields: map[string]any{"source": cfg.Source}})
	start := time.Now()

	res, err := c.callLoader(ctx, cfg, opts)
	if err != nil {
		c.metrics.loads.WithLabelValues("failed").Inc()
		c.log.Error().Str("model", cfg.ID).Err(err).Msg("load failed")
		c.pub.Publish(Event{Name: EventLoadFailed, ModelID: cfg.ID, Fields: map[string]any{"error": err.Error()}})
		return ModelStats{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if cerr := res.Close(); cerr != nil {
			c.log.Warn().Str("model", cfg.ID).Err(cerr).Msg("dispose after shutdown failed")
		}
		return ModelStats{}, ErrShutdown
	}
	rm := &residentModel{
		id:          cfg.ID,
		cfg:         cfg,
		codec:       cd,
		resource:    res,
		loadedAt:    time.Now(),
		memoryBytes: res.ParamCount() * bytesPerParam,
	}
	c.models[cfg.ID] = rm
	c.touchLocked(rm)
	c.loadCount++
	victims := c.evictLocked(cfg.ID)
	st := rm.stats()
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.metrics.loads.WithLabelValues("ok").Inc()
	c.dispose(victims, EventEvicted)

	elapsed := time.Since(start)
	c.log.Info().Str("model", cfg.ID).Dur("duration", elapsed).Int64("memory_bytes", st.MemoryBytes).Msg("load done")
	c.pub.Publish(Event{Name: EventLoadDone, ModelID: cfg.ID, Fields: map[string]any{"duration_ms": elapsed.Milliseconds(), "memory_bytes": st.MemoryBytes}})
	if c.warm != nil {
		c.warm(ctx, cfg, opts)
	}
	return st, nil
}

// callLoader turns a loader panic into an error so it reaches every waiter.
func (c *ModelCache) callLoader(ctx context.Context, cfg types.ModelConfig, opts LoadOptions) (res loader.Resource, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	return c.loader.Load(ctx, cfg, loader.LoadOptions{OnProgress: opts.OnProgress})
}

// begin marks id busy for one prediction.
func (c *ModelCache) begin(id string) (*residentModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrShutdown
	}
	rm, ok := c.models[id]
	if !ok {
		return nil, ErrNotLoaded(id)
	}
	rm.busy++
	c.inflight++
	c.touchLocked(rm)
	return rm, nil
}

// complete releases one prediction. Successful ones update usage and the
// running latency average. Eviction deferred by busy entries runs here.
func (c *ModelCache) complete(rm *residentModel, elapsed time.Duration, ok bool) {
	c.mu.Lock()
	rm.busy--
	c.inflight--
	if ok {
		n := time.Duration(rm.usageCount)
		rm.avgLatency = (rm.avgLatency*n + elapsed) / (n + 1)
		rm.usageCount++
	}
	var victims []*residentModel
	orphan := rm.orphaned && rm.busy == 0
	if !c.closed {
		victims = c.evictLocked("")
		c.updateGaugesLocked()
	}
	var drained chan struct{}
	if c.closed && c.inflight == 0 {
		drained, c.drained = c.drained, nil
	}
	c.mu.Unlock()

	if orphan {
		c.dispose([]*residentModel{rm}, "")
	}
	c.dispose(victims, EventEvicted)
	if drained != nil {
		close(drained)
	}
}

// Unload removes id regardless of LRU order. A busy entry leaves the table at
// once and is disposed when its last prediction returns.
func (c *ModelCache) Unload(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrShutdown
	}
	rm, ok := c.models[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotLoaded(id)
	}
	delete(c.models, id)
	c.updateGaugesLocked()
	busy := rm.busy > 0
	if busy {
		rm.orphaned = true
	}
	c.mu.Unlock()

	if !busy {
		c.dispose([]*residentModel{rm}, "")
	}
	c.log.Info().Str("model", id).Bool("deferred", busy).Msg("unloaded")
	c.pub.Publish(Event{Name: EventUnloaded, ModelID: id, Fields: map[string]any{"deferred": busy}})
	return nil
}

// Stats returns copies of every resident entry, sorted by id.
func (c *ModelCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := CacheStats{
		Models:    make([]ModelStats, 0, len(c.models)),
		Capacity:  c.capacity,
		Loads:     c.loadCount,
		Evictions: c.evictions,
	}
	for _, rm := range c.models {
		out.Models = append(out.Models, rm.stats())
		out.MemoryBytes += rm.memoryBytes
	}
	slices.SortFunc(out.Models, func(a, b ModelStats) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Resident reports whether id is currently in the table.
func (c *ModelCache) Resident(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.models[id]
	return ok
}

// close makes the cache inert and disposes idle entries. Busy entries are
// disposed as their predictions finish; the returned channel, when non-nil,
// is closed once the last of them is gone.
func (c *ModelCache) close() (<-chan struct{}, int) {
	c.mu.Lock()
	if c.closed {
		d := c.drained
		c.mu.Unlock()
		if d == nil {
			return nil, 0
		}
		return d, 0
	}
	c.closed = true
	var idle []*residentModel
	for id, rm := range c.models {
		if rm.busy > 0 {
			rm.orphaned = true
		} else {
			idle = append(idle, rm)
		}
		delete(c.models, id)
	}
	if c.inflight > 0 {
		c.drained = make(chan struct{})
	}
	drained := c.drained
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.dispose(idle, EventUnloaded)
	if drained == nil {
		return nil, len(idle)
	}
	return drained, len(idle)
}
