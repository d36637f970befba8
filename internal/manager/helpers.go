package manager

import (
	"context"

	"inferd/internal/codec"
	"inferd/pkg/types"
)

// runWarmup pushes one random tensor of the declared input shape through the
// model. It skips the codec's preprocessor and does not count as usage.
func (m *Manager) runWarmup(ctx context.Context, cfg types.ModelConfig) {
	if len(cfg.InputShape) == 0 {
		m.log.Debug().Str("model", cfg.ID).Msg("warmup skipped, no input shape")
		return
	}
	err := guard(func() error {
		t, err := codec.RandomNormal(append([]int{1}, cfg.InputShape...), nil)
		if err != nil {
			return err
		}
		in := PredictionInput{Data: codec.Raw{Values: t.Data, Shape: t.Shape}, Preprocessed: true}
		_, err = m.predict(ctx, cfg.ID, in, false)
		return err
	})
	if err != nil {
		m.log.Warn().Str("model", cfg.ID).Err(err).Msg("warmup failed")
		m.publisher.Publish(Event{Name: EventWarmupFailed, ModelID: cfg.ID, Fields: map[string]any{"error": err.Error()}})
		return
	}
	m.log.Debug().Str("model", cfg.ID).Msg("warmup done")
}
