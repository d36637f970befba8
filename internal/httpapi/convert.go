package httpapi

import (
	"inferd/internal/codec"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

func toPredictionInput(req types.PredictRequest) manager.PredictionInput {
	return manager.PredictionInput{
		Data: codec.Raw{
			Values:     req.Values,
			Shape:      req.Shape,
			Text:       req.Text,
			SampleRate: req.SampleRate,
		},
		Preprocessed: req.Preprocessed,
	}
}

func toPredictResponse(out manager.PredictionOutput) types.PredictResponse {
	preds := out.Predictions
	if preds == nil {
		preds = []float64{}
	}
	return types.PredictResponse{
		Predictions:      preds,
		Probabilities:    out.Probabilities,
		Labels:           out.Labels,
		Confidence:       out.Confidence,
		ProcessingTimeMs: float64(out.ProcessingTime.Microseconds()) / 1000,
	}
}
