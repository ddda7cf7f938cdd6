package manager

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
	"github.com/kwlee0220/mdt-workflow-argo/internal/reconcile"
	"github.com/kwlee0220/mdt-workflow-argo/internal/store"
)

var (
	// ErrResourceNotFound means the workflow model or instance does not exist.
	ErrResourceNotFound = zerr.New("resource not found")

	// ErrResourceAlreadyExists means a model with the same id is already stored.
	ErrResourceAlreadyExists = zerr.New("resource already exists")

	// ErrValidation means a model or task was rejected before reaching the engine.
	ErrValidation = zerr.New("validation failed")

	// ErrEngineCommunication matches every *EngineError.
	ErrEngineCommunication = zerr.New("workflow engine communication failed")

	// ErrStructuralMismatch means an engine snapshot had an unexpected shape.
	ErrStructuralMismatch = zerr.New("structural mismatch")
)

// EngineError is a failure talking to the workflow engine other than a
// missing resource. It carries the original cause.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEngineCommunication.Error(), e.Op, e.Err)
}

// Is reports ErrEngineCommunication as a match.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngineCommunication
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// engineError translates an engine failure for the named workflow.
func engineError(op, name string, err error) error {
	if argo.IsNotFound(err) {
		return zerr.With(zerr.Wrap(ErrResourceNotFound, "workflow "+name), "workflow", name)
	}
	return &EngineError{Op: op, Err: err}
}

// storeError translates a model store failure for the given model id.
func storeError(id string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return zerr.With(zerr.Wrap(ErrResourceNotFound, "workflow model "+id), "model", id)
	case errors.Is(err, store.ErrAlreadyExists):
		return zerr.With(zerr.Wrap(ErrResourceAlreadyExists, "workflow model "+id), "model", id)
	case errors.Is(err, model.ErrInvalidModel):
		return validationError(err)
	default:
		return fmt.Errorf("model store: %w", err)
	}
}

// validationError keeps the model error in the chain so callers can still
// match model.ErrCycleDetected.
func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func reconcileError(name string, err error) error {
	if errors.Is(err, reconcile.ErrStructuralMismatch) {
		return zerr.With(fmt.Errorf("%w: %w", ErrStructuralMismatch, err), "workflow", name)
	}
	return err
}
