package manager

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"inferd/internal/codec"
)

// Predict runs one input through a resident model. The model is guarded from
// eviction for the duration of the call. Pipeline failures come back as
// *PredictionFailedError and leave the model resident.
func (m *Manager) Predict(ctx context.Context, id string, in PredictionInput) (PredictionOutput, error) {
	if m.shut.Load() {
		return PredictionOutput{}, ErrShutdown
	}
	return m.predict(ctx, id, in, true)
}

func (m *Manager) predict(ctx context.Context, id string, in PredictionInput, record bool) (PredictionOutput, error) {
	rm, err := m.cache.begin(id)
	if err != nil {
		return PredictionOutput{}, err
	}
	start := time.Now()
	res, err := runPipeline(ctx, rm, in)
	elapsed := time.Since(start)
	m.cache.complete(rm, elapsed, err == nil && record)
	if err != nil {
		m.log.Debug().Str("model", id).Err(err).Msg("predict failed")
		return PredictionOutput{}, err
	}
	if record {
		m.metrics.inference.WithLabelValues(id).Observe(elapsed.Seconds())
	}
	return PredictionOutput{
		Predictions:    res.Predictions,
		Probabilities:  res.Probabilities,
		Labels:         res.Labels,
		Confidence:     res.Confidence,
		ProcessingTime: elapsed,
	}, nil
}

func runPipeline(ctx context.Context, rm *residentModel, in PredictionInput) (codec.Result, error) {
	fail := func(stage Stage, err error) error {
		return &PredictionFailedError{ModelID: rm.id, Stage: stage, Err: err}
	}
	var (
		tensor codec.Tensor
		output codec.Tensor
		result codec.Result
	)
	if err := guard(func() (err error) {
		if in.Preprocessed {
			tensor, err = in.Data.Tensor()
		} else {
			tensor, err = rm.codec.Preprocess(in.Data)
		}
		return err
	}); err != nil {
		return codec.Result{}, fail(StagePreprocess, err)
	}
	if err := guard(func() (err error) {
		output, err = rm.resource.Run(ctx, tensor)
		return err
	}); err != nil {
		return codec.Result{}, fail(StageExecute, err)
	}
	if err := guard(func() (err error) {
		result, err = rm.codec.Postprocess(output)
		return err
	}); err != nil {
		return codec.Result{}, fail(StagePostprocess, err)
	}
	return result, nil
}

// guard converts a panic in f into an error.
func guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f()
}

// BatchPredict runs inputs in chunks of BatchChunkSize. Inputs within a chunk
// run concurrently, chunks run one after another, and results keep input
// order. The first error aborts the remaining chunks.
func (m *Manager) BatchPredict(ctx context.Context, id string, inputs []PredictionInput) ([]PredictionOutput, error) {
	if m.shut.Load() {
		return nil, ErrShutdown
	}
	out := make([]PredictionOutput, len(inputs))
	for start := 0; start < len(inputs); start += m.chunkSize {
		end := min(start+m.chunkSize, len(inputs))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				r, err := m.predict(gctx, id, inputs[i], true)
				if err != nil {
					return err
				}
				out[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
