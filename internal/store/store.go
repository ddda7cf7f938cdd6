package store

import (
	"context"
	"errors"

	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

var (
	// ErrNotFound is returned when no model has the requested id.
	ErrNotFound = errors.New("workflow model not found")

	// ErrAlreadyExists is returned when adding a model whose id is taken.
	ErrAlreadyExists = errors.New("workflow model already exists")
)

// ModelStore defines the persistence operations for workflow models. Model
// ids are matched case-insensitively.
type ModelStore interface {
	GetModel(ctx context.Context, id string) (*model.TaskGraphModel, error)
	ListModels(ctx context.Context) ([]*model.TaskGraphModel, error)
	AddModel(ctx context.Context, m *model.TaskGraphModel) error
	// ReplaceModel adds m or overwrites the model with the same id, reporting
	// whether it was added.
	ReplaceModel(ctx context.Context, m *model.TaskGraphModel) (bool, error)
	DeleteModel(ctx context.Context, id string) error
	DeleteAllModels(ctx context.Context) (int64, error)
	Close() error
}
