package manager

// evictLocked removes least recently used idle entries until the table fits
// capacity. protect is never chosen; it is the entry a load just inserted.
// When every candidate is busy the table stays over capacity and the next
// completed prediction tries again. Callers dispose the returned entries
// after releasing the lock.
func (c *ModelCache) evictLocked(protect string) []*residentModel {
	var victims []*residentModel
	for len(c.models) > c.capacity {
		var lru *residentModel
		for _, rm := range c.models {
			if rm.busy > 0 || rm.id == protect {
				continue
			}
			if lru == nil || rm.tick < lru.tick {
				lru = rm
			}
		}
		if lru == nil {
			if len(victims) == 0 {
				c.log.Debug().Int("resident", len(c.models)).Int("capacity", c.capacity).Msg("over capacity, all models busy")
			}
			break
		}
		delete(c.models, lru.id)
		c.evictions++
		c.metrics.evictions.Inc()
		victims = append(victims, lru)
	}
	return victims
}

// dispose closes resources of entries that already left the table. Errors are
// logged; the entry is gone either way. event, when set, is published per
// entry.
func (c *ModelCache) dispose(victims []*residentModel, event string) {
	for _, rm := range victims {
		if err := rm.resource.Close(); err != nil {
			c.log.Warn().Str("model", rm.id).Err(err).Msg("dispose failed")
		}
		if event == "" {
			continue
		}
		if event == EventEvicted {
			c.log.Info().Str("model", rm.id).Msg("evicted")
		}
		c.pub.Publish(Event{Name: event, ModelID: rm.id, Fields: map[string]any{}})
	}
}

func (c *ModelCache) updateGaugesLocked() {
	var mem int64
	for _, rm := range c.models {
		mem += rm.memoryBytes
	}
	c.metrics.resident.Set(float64(len(c.models)))
	c.metrics.memory.Set(float64(mem))
}
