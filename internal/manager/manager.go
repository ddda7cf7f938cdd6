// Package manager runs workflow models on the Argo workflow engine and
// reports the progress of their instances in terms of model tasks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
	"github.com/kwlee0220/mdt-workflow-argo/internal/compiler"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
	"github.com/kwlee0220/mdt-workflow-argo/internal/reconcile"
	"github.com/kwlee0220/mdt-workflow-argo/internal/store"
)

// defaultRemoveConcurrency bounds the deletions RemoveAll runs at once.
const defaultRemoveConcurrency = 8

// Options configures a Manager.
type Options struct {
	// Namespace is the engine namespace workflows are created in.
	Namespace string

	// Endpoint is the MDT endpoint handed to task runners when a caller
	// does not supply one.
	Endpoint string

	// ClientImage is the runner image used when a caller does not supply one.
	ClientImage string

	// RemoveConcurrency bounds concurrent deletions in RemoveAll. Zero means 8.
	RemoveConcurrency int
}

// Manager exposes workflow instance lifecycle and model management.
type Manager struct {
	engine argo.Engine
	models store.ModelStore
	opts   Options
	logger *slog.Logger

	// unknownPhases holds the engine phases already reported as unrecognized.
	unknownPhases sync.Map
}

// New creates a Manager over the given engine and model store.
func New(engine argo.Engine, models store.ModelStore, opts Options, logger *slog.Logger) *Manager {
	if opts.RemoveConcurrency <= 0 {
		opts.RemoveConcurrency = defaultRemoveConcurrency
	}
	return &Manager{
		engine: engine,
		models: models,
		opts:   opts,
		logger: logger,
	}
}

// RemoveReport lists the outcome of a RemoveAll call.
type RemoveReport struct {
	Removed []string          `json:"removed"`
	Failed  map[string]string `json:"failed"`
}

// List returns the views of every workflow instance in the namespace.
// Instances that were not compiled from a model are skipped.
func (m *Manager) List(ctx context.Context) ([]*reconcile.WorkflowView, error) {
	wfs, err := m.engine.List(ctx, m.opts.Namespace)
	if err != nil {
		return nil, &EngineError{Op: "list", Err: err}
	}

	cache := make(map[string]*model.TaskGraphModel)
	views := make([]*reconcile.WorkflowView, 0, len(wfs))
	for i := range wfs {
		wf := &wfs[i]
		if _, ok := wf.DAGTemplate(); !ok {
			m.logger.Debug("skipping workflow without dag template", "workflow", wf.Metadata.Name)
			continue
		}

		id := strings.ToLower(reconcile.ModelIDOf(wf.Metadata.Name))
		tgm, cached := cache[id]
		if !cached {
			tgm, err = m.modelOf(ctx, wf.Metadata.Name)
			if err != nil {
				return nil, err
			}
			cache[id] = tgm
		}

		view, err := m.reconcile(wf, tgm)
		if err != nil {
			m.logger.Debug("skipping unreadable workflow", "workflow", wf.Metadata.Name, "error", err)
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns the view of one workflow instance.
func (m *Manager) Get(ctx context.Context, name string) (*reconcile.WorkflowView, error) {
	wf, err := m.engine.Get(ctx, m.opts.Namespace, name)
	if err != nil {
		return nil, engineError("get", name, err)
	}
	return m.view(ctx, wf)
}

// Start compiles the model and submits it as a new workflow instance. It
// returns once the engine has accepted the instance.
func (m *Manager) Start(ctx context.Context, modelID string) (*reconcile.WorkflowView, error) {
	tgm, err := m.models.GetModel(ctx, modelID)
	if err != nil {
		return nil, storeError(modelID, err)
	}

	wf, err := compiler.Compile(tgm, m.opts.Endpoint, m.opts.ClientImage)
	if err != nil {
		return nil, validationError(err)
	}

	created, err := m.engine.Create(ctx, m.opts.Namespace, wf)
	if err != nil {
		return nil, &EngineError{Op: "create", Err: err}
	}
	m.logger.Info("workflow started", "model", tgm.ID, "workflow", created.Metadata.Name)

	return m.reconcile(created, tgm)
}

// Stop stops a workflow instance.
func (m *Manager) Stop(ctx context.Context, name string) error {
	if _, err := m.engine.Stop(ctx, m.opts.Namespace, name); err != nil {
		return engineError("stop", name, err)
	}
	m.logger.Info("workflow stopped", "workflow", name)
	return nil
}

// Suspend suspends a workflow instance and returns its updated view.
func (m *Manager) Suspend(ctx context.Context, name string) (*reconcile.WorkflowView, error) {
	wf, err := m.engine.Suspend(ctx, m.opts.Namespace, name)
	if err != nil {
		return nil, engineError("suspend", name, err)
	}
	m.logger.Info("workflow suspended", "workflow", name)
	return m.view(ctx, wf)
}

// Resume resumes a suspended workflow instance and returns its updated view.
func (m *Manager) Resume(ctx context.Context, name string) (*reconcile.WorkflowView, error) {
	wf, err := m.engine.Resume(ctx, m.opts.Namespace, name)
	if err != nil {
		return nil, engineError("resume", name, err)
	}
	m.logger.Info("workflow resumed", "workflow", name)
	return m.view(ctx, wf)
}

// Remove deletes one workflow instance.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if err := m.engine.Delete(ctx, m.opts.Namespace, name); err != nil {
		return engineError("delete", name, err)
	}
	m.logger.Info("workflow removed", "workflow", name)
	return nil
}

// RemoveAll deletes every workflow instance, or only the instances of
// modelFilter when it is not empty. Deletions are independent: a failure is
// recorded in the report and the rest continue. The error is non-nil only
// when the instances could not be listed.
func (m *Manager) RemoveAll(ctx context.Context, modelFilter string) (RemoveReport, error) {
	report := RemoveReport{Removed: []string{}, Failed: map[string]string{}}

	wfs, err := m.engine.List(ctx, m.opts.Namespace)
	if err != nil {
		return report, &EngineError{Op: "list", Err: err}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.opts.RemoveConcurrency)

	for _, wf := range wfs {
		name := wf.Metadata.Name
		if modelFilter != "" && !strings.EqualFold(reconcile.ModelIDOf(name), modelFilter) {
			continue
		}
		g.Go(func() error {
			err := m.engine.Delete(ctx, m.opts.Namespace, name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("failed to remove workflow", "workflow", name, "error", err)
				report.Failed[name] = err.Error()
				return nil
			}
			report.Removed = append(report.Removed, name)
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("workflows removed", "model_filter", modelFilter,
		"removed", len(report.Removed), "failed", len(report.Failed))
	return report, nil
}

// FetchLog returns the main container log of one pod of a workflow instance.
func (m *Manager) FetchLog(ctx context.Context, name, podName string) (string, error) {
	out, err := m.engine.Logs(ctx, m.opts.Namespace, name, podName)
	if err != nil {
		return "", engineError("logs", name, err)
	}
	return out, nil
}

// view reconciles wf against the stored model it was started from.
func (m *Manager) view(ctx context.Context, wf *argo.Workflow) (*reconcile.WorkflowView, error) {
	tgm, err := m.modelOf(ctx, wf.Metadata.Name)
	if err != nil {
		return nil, err
	}
	return m.reconcile(wf, tgm)
}

func (m *Manager) reconcile(wf *argo.Workflow, tgm *model.TaskGraphModel) (*reconcile.WorkflowView, error) {
	view, err := reconcile.Reconcile(wf, tgm)
	if err != nil {
		return nil, reconcileError(wf.Metadata.Name, err)
	}
	for _, phase := range reconcile.UnknownPhases(wf) {
		if _, seen := m.unknownPhases.LoadOrStore(phase, struct{}{}); !seen {
			m.logger.Warn("unrecognized workflow phase", "phase", phase, "workflow", wf.Metadata.Name)
		}
	}
	if tgm != nil {
		view.ModelID = tgm.ID
	}
	return view, nil
}

// modelOf looks up the model a workflow instance was started from. A model
// that has since been removed yields nil.
func (m *Manager) modelOf(ctx context.Context, name string) (*model.TaskGraphModel, error) {
	tgm, err := m.models.GetModel(ctx, reconcile.ModelIDOf(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model of %s: %w", name, err)
	}
	return tgm, nil
}
