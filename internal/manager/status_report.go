package manager

import (
	"time"

	"inferd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	st := m.cache.Stats()
	now := time.Now()
	state := StateReady
	if m.shut.Load() {
		state = StateShutdown
	}
	resp := types.StatusResponse{
		Models:         make([]types.ModelStatus, 0, len(st.Models)),
		TotalResident:  len(st.Models),
		Capacity:       st.Capacity,
		MemoryBytes:    st.MemoryBytes,
		LoadsTotal:     st.Loads,
		EvictionsTotal: st.Evictions,
		State:          string(state),
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	for _, ms := range st.Models {
		resp.Models = append(resp.Models, types.ModelStatus{
			ModelID:        ms.ID,
			LoadedAt:       ms.LoadedAt.Unix(),
			LastUsed:       ms.LastUsed.Unix(),
			UsageCount:     ms.UsageCount,
			AvgInferenceMs: float64(ms.AvgLatency) / float64(time.Millisecond),
			MemoryBytes:    ms.MemoryBytes,
			Inflight:       ms.Inflight,
		})
	}
	return resp
}
