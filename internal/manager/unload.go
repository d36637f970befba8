package manager

import "context"

// UnloadModel removes id from the cache. It returns a not-loaded error when id
// is not resident. A prediction already running keeps its model until it
// returns.
func (m *Manager) UnloadModel(id string) error {
	if m.shut.Load() {
		return ErrShutdown
	}
	return m.cache.Unload(id)
}

// Shutdown unloads every model and makes the manager inert. It waits, bounded
// by ctx, for running predictions to release their models. Calling it again
// returns ErrShutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.shut.CompareAndSwap(false, true) {
		return ErrShutdown
	}
	drained, n := m.cache.close()
	m.log.Info().Int("unloaded", n).Bool("draining", drained != nil).Msg("shutdown")
	m.publisher.Publish(Event{Name: EventShutdown, Fields: map[string]any{"unloaded": n}})
	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
