package manager

import (
	"errors"
	"fmt"

	"inferd/internal/catalog"
	"inferd/internal/loader"
)

// ErrShutdown is returned by every call made after Shutdown.
var ErrShutdown = errors.New("manager is shut down")

// IsShutdown reports whether err indicates the manager has been shut down.
func IsShutdown(err error) bool { return errors.Is(err, ErrShutdown) }

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error when a requested model id is not present in the catalog.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type notLoadedError struct{ id string }

func (e notLoadedError) Error() string { return "model not loaded: " + e.id }

// ErrNotLoaded returns an error for operations that need a resident model.
func ErrNotLoaded(id string) error { return notLoadedError{id: id} }

// IsNotLoaded reports whether err indicates the model is not resident.
func IsNotLoaded(err error) bool {
	var e notLoadedError
	return errors.As(err, &e)
}

// Stage names the step of a prediction that failed.
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageExecute     Stage = "execute"
	StagePostprocess Stage = "postprocess"
)

// PredictionFailedError wraps a failure inside the predict pipeline. The
// model stays resident.
type PredictionFailedError struct {
	ModelID string
	Stage   Stage
	Err     error
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction failed for %s during %s: %v", e.ModelID, e.Stage, e.Err)
}

func (e *PredictionFailedError) Unwrap() error { return e.Err }

// IsPredictionFailed reports whether err is a PredictionFailedError.
func IsPredictionFailed(err error) bool {
	var e *PredictionFailedError
	return errors.As(err, &e)
}

// IsLoadFailed reports whether err is a loader failure.
func IsLoadFailed(err error) bool { return loader.IsLoadFailed(err) }

// IsInvalidConfig reports whether err is a model config validation failure.
func IsInvalidConfig(err error) bool { return errors.Is(err, catalog.ErrInvalidConfig) }
