package manager

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"inferd/internal/catalog"
	"inferd/internal/loader"
	"inferd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultCapacity       = 5
	defaultBatchChunkSize = 32
)

// Loader produces resources from model configs. *loader.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, cfg types.ModelConfig, opts loader.LoadOptions) (loader.Resource, error)
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Catalog resolves ids for LoadByID and ListModels. Nil means empty.
	Catalog *catalog.Catalog
	// Loader fetches models. Nil uses loader.New().
	Loader Loader
	// Capacity is the maximum number of resident models.
	Capacity int
	// BatchChunkSize bounds concurrent predictions within one batch.
	BatchChunkSize int
	// Warmup is the default for models that do not set their own flag.
	// Nil means true.
	Warmup *bool
	// Logger receives structured logs. Nil disables logging.
	Logger *zerolog.Logger
	// Publisher receives lifecycle events. Nil drops them.
	Publisher EventPublisher
	// Registerer, when set, gets the cache metrics registered on it.
	Registerer prometheus.Registerer
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	cat := cfg.Catalog
	if cat == nil {
		cat, _ = catalog.New()
	}
	var ld Loader = cfg.Loader
	if ld == nil {
		ld = loader.New(loader.WithLogger(log))
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	chunk := cfg.BatchChunkSize
	if chunk <= 0 {
		chunk = defaultBatchChunkSize
	}
	warmup := true
	if cfg.Warmup != nil {
		warmup = *cfg.Warmup
	}
	var pub EventPublisher = noopPublisher{}
	if cfg.Publisher != nil {
		pub = cfg.Publisher
	}

	metrics := newCacheMetrics()
	if cfg.Registerer != nil {
		metrics.register(cfg.Registerer)
	}

	m := &Manager{
		catalog:   cat,
		chunkSize: chunk,
		warmup:    warmup,
		log:       log,
		publisher: pub,
		metrics:   metrics,
		startTime: time.Now(),
	}
	m.cache = newModelCache(capacity, ld, log, pub, metrics)
	m.cache.warm = m.warmAfterLoad
	return m
}
