// Package manager keeps loaded models resident and coordinates inference
// against them. It is structured into small files by concern:
//
//   - manager.go: Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: value types handed to callers (ModelStats, CacheStats, inputs and outputs).
//   - errors.go: error types and helpers (IsModelNotFound, IsNotLoaded, ...).
//   - cache.go: ModelCache, the resident table with de-duplicated loads.
//   - evict.go: LRU selection and disposal.
//   - predict.go: Predict and BatchPredict.
//   - unload.go: UnloadModel and Shutdown.
//   - ops.go: background preloads.
//   - status_report.go: Status projection for /status.
//   - metrics.go: Prometheus collectors for the cache.
//
// The cache guards its table with one mutex. Resource disposal always happens
// after an entry has left the table and outside the lock, and an entry with
// predictions in flight is never disposed until the last one returns.
package manager
