package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/catalog"
	"inferd/pkg/types"
)

// Manager coordinates loads and predictions against a ModelCache.
type Manager struct {
	catalog   *catalog.Catalog
	cache     *ModelCache
	chunkSize int
	warmup    bool
	log       zerolog.Logger
	publisher EventPublisher
	metrics   *cacheMetrics
	startTime time.Time
	shut      atomic.Bool

	opMu sync.Mutex
	ops  map[string]*Operation
}

// New builds a Manager with default tunables.
func New(cat *catalog.Catalog, l Loader) *Manager {
	return NewWithConfig(ManagerConfig{Catalog: cat, Loader: l})
}

// Ready reports whether the manager still accepts work.
func (m *Manager) Ready() bool { return !m.shut.Load() }

// ListModels returns copies of every catalog entry.
func (m *Manager) ListModels() []types.ModelConfig { return m.catalog.List() }

// ListLoaded returns the ids of resident models, sorted.
func (m *Manager) ListLoaded() []string {
	st := m.cache.Stats()
	ids := make([]string, 0, len(st.Models))
	for _, ms := range st.Models {
		ids = append(ids, ms.ID)
	}
	return ids
}

// ModelInfo returns the bookkeeping of a resident model.
func (m *Manager) ModelInfo(id string) (ModelStats, bool) {
	for _, ms := range m.cache.Stats().Models {
		if ms.ID == id {
			return ms, true
		}
	}
	return ModelStats{}, false
}

// Stats returns value copies of the resident set.
func (m *Manager) Stats() CacheStats { return m.cache.Stats() }

// LoadModel validates cfg and makes it resident. Loading a resident model is
// a no-op apart from touching it. A fresh load is followed by a warmup
// inference, run as part of the shared load, whose failure is logged and
// otherwise ignored.
func (m *Manager) LoadModel(ctx context.Context, cfg types.ModelConfig, opts LoadOptions) (ModelStats, error) {
	if m.shut.Load() {
		return ModelStats{}, ErrShutdown
	}
	valid, cd, err := catalog.Validate(cfg)
	if err != nil {
		return ModelStats{}, err
	}
	return m.cache.Acquire(ctx, valid, cd, opts)
}

// LoadByID loads the catalog entry for id using the codec bound when the
// entry was added.
func (m *Manager) LoadByID(ctx context.Context, id string, opts LoadOptions) (ModelStats, error) {
	if m.shut.Load() {
		return ModelStats{}, ErrShutdown
	}
	cfg, cd, ok := m.catalog.Lookup(id)
	if !ok {
		return ModelStats{}, ErrModelNotFound(id)
	}
	return m.cache.Acquire(ctx, cfg, cd, opts)
}

// warmAfterLoad is installed as the cache's post-load hook.
func (m *Manager) warmAfterLoad(ctx context.Context, cfg types.ModelConfig, opts LoadOptions) {
	if m.warmupEnabled(cfg, opts) {
		m.runWarmup(ctx, cfg)
	}
}

func (m *Manager) warmupEnabled(cfg types.ModelConfig, opts LoadOptions) bool {
	switch {
	case opts.Warmup != nil:
		return *opts.Warmup
	case cfg.Warmup != nil:
		return *cfg.Warmup
	}
	return m.warmup
}
