package manager

import (
	"context"
	"fmt"

	"github.com/kwlee0220/mdt-workflow-argo/internal/compiler"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

// AddModel stores a new model.
func (m *Manager) AddModel(ctx context.Context, tgm *model.TaskGraphModel) error {
	if err := m.models.AddModel(ctx, tgm); err != nil {
		return storeError(tgm.ID, err)
	}
	m.logger.Info("workflow model added", "model", tgm.ID)
	return nil
}

// AddOrReplaceModel stores tgm, replacing any model with the same id. It
// reports whether the model was newly added.
func (m *Manager) AddOrReplaceModel(ctx context.Context, tgm *model.TaskGraphModel) (bool, error) {
	created, err := m.models.ReplaceModel(ctx, tgm)
	if err != nil {
		return false, storeError(tgm.ID, err)
	}
	m.logger.Info("workflow model stored", "model", tgm.ID, "created", created)
	return created, nil
}

// GetModel returns a stored model.
func (m *Manager) GetModel(ctx context.Context, id string) (*model.TaskGraphModel, error) {
	tgm, err := m.models.GetModel(ctx, id)
	if err != nil {
		return nil, storeError(id, err)
	}
	return tgm, nil
}

// ListModels returns every stored model.
func (m *Manager) ListModels(ctx context.Context) ([]*model.TaskGraphModel, error) {
	models, err := m.models.ListModels(ctx)
	if err != nil {
		return nil, storeError("", err)
	}
	return models, nil
}

// RemoveModel deletes a stored model. Instances already started from it
// keep running.
func (m *Manager) RemoveModel(ctx context.Context, id string) error {
	if err := m.models.DeleteModel(ctx, id); err != nil {
		return storeError(id, err)
	}
	m.logger.Info("workflow model removed", "model", id)
	return nil
}

// RemoveAllModels deletes every stored model and returns how many there were.
func (m *Manager) RemoveAllModels(ctx context.Context) (int64, error) {
	n, err := m.models.DeleteAllModels(ctx)
	if err != nil {
		return 0, storeError("", err)
	}
	m.logger.Info("workflow models removed", "count", n)
	return n, nil
}

// Script renders the submission document of a stored model as YAML. Empty
// endpoint or image fall back to the manager's defaults.
func (m *Manager) Script(ctx context.Context, modelID, endpoint, image string) ([]byte, error) {
	tgm, err := m.models.GetModel(ctx, modelID)
	if err != nil {
		return nil, storeError(modelID, err)
	}

	if endpoint == "" {
		endpoint = m.opts.Endpoint
	}
	if image == "" {
		image = m.opts.ClientImage
	}

	wf, err := compiler.Compile(tgm, endpoint, image)
	if err != nil {
		return nil, validationError(err)
	}
	out, err := compiler.RenderYAML(wf)
	if err != nil {
		return nil, fmt.Errorf("render script of %s: %w", modelID, err)
	}
	return out, nil
}
