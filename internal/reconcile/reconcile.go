// Package reconcile joins an Argo workflow snapshot with the workflow model
// it was compiled from, producing a task-keyed view of its progress.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

// ErrStructuralMismatch is returned when a snapshot does not have the shape
// of a compiled workflow.
var ErrStructuralMismatch = errors.New("workflow snapshot has unexpected structure")

// NodeTask is the state of one model task within a workflow instance.
type NodeTask struct {
	TaskID       string     `json:"taskId"`
	Status       Status     `json:"status"`
	Dependencies []string   `json:"dependencies"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	FinishTime   *time.Time `json:"finishTime,omitempty"`
}

// WorkflowView is the state of one workflow instance, with one task entry
// per task of its model in model order.
type WorkflowView struct {
	Name         string     `json:"name"`
	ModelID      string     `json:"modelId"`
	Status       Status     `json:"status"`
	CreationTime *time.Time `json:"creationTime,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	FinishTime   *time.Time `json:"finishTime,omitempty"`
	Tasks        []NodeTask `json:"tasks"`
}

// ModelIDOf recovers the model id prefix from a workflow instance name
// generated as "<model-id>-<suffix>". The result is lower-cased, as the
// engine saw it.
func ModelIDOf(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	return name[:i]
}

// Reconcile builds the view of wf. Every task of m yields exactly one
// NodeTask: tasks the engine reports a pod node for take the node's phase
// and times, the rest are NOT_STARTED with the model's dependencies. Nodes
// that match no task of m are ignored. A nil m yields no tasks.
func Reconcile(wf *argo.Workflow, m *model.TaskGraphModel) (*WorkflowView, error) {
	if len(wf.Spec.Templates) == 0 {
		return nil, fmt.Errorf("%w: workflow %s has no templates", ErrStructuralMismatch, wf.Metadata.Name)
	}
	dag, ok := wf.DAGTemplate()
	if !ok {
		return nil, fmt.Errorf("%w: workflow %s has no dag template", ErrStructuralMismatch, wf.Metadata.Name)
	}

	// Dependencies as submitted, which may differ from the model if it was
	// replaced after the workflow started.
	submitted := make(map[string][]string, len(dag.DAG.Tasks))
	for _, t := range dag.DAG.Tasks {
		submitted[t.Name] = t.Dependencies
	}

	var phase string
	var nodes map[string]argo.NodeStatus
	var started, finished *time.Time
	if wf.Status != nil {
		phase = wf.Status.Phase
		nodes = wf.Status.Nodes
		started, finished = wf.Status.StartedAt, wf.Status.FinishedAt
	}

	// Node ids are visited in sorted order so that nodes sharing a task key
	// resolve the same way on every call.
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pods := make(map[string]argo.NodeStatus, len(nodes))
	for _, id := range ids {
		node := nodes[id]
		if node.Type != argo.NodeTypePod {
			continue
		}
		key, ok := taskKey(wf.Metadata.Name, node.Name)
		if !ok {
			continue
		}
		if _, dup := pods[key]; !dup {
			pods[key] = node
		}
	}

	view := &WorkflowView{
		Name:         wf.Metadata.Name,
		ModelID:      ModelIDOf(wf.Metadata.Name),
		Status:       PhaseToStatus(phase),
		CreationTime: utc(wf.Metadata.CreationTimestamp),
		StartTime:    utc(started),
		FinishTime:   utc(finished),
		Tasks:        []NodeTask{},
	}
	if m == nil {
		return view, nil
	}

	for _, t := range m.Tasks {
		node, ok := pods[t.ID]
		if !ok {
			view.Tasks = append(view.Tasks, NodeTask{
				TaskID:       t.ID,
				Status:       StatusNotStarted,
				Dependencies: cloneDeps(t.Dependencies),
			})
			continue
		}
		id := node.DisplayName
		if id == "" {
			id = t.ID
		}
		view.Tasks = append(view.Tasks, NodeTask{
			TaskID:       id,
			Status:       PhaseToStatus(node.Phase),
			Dependencies: cloneDeps(submitted[id]),
			StartTime:    utc(node.StartedAt),
			FinishTime:   utc(node.FinishedAt),
		})
	}
	return view, nil
}

// taskKey returns the task id part of a node name "<workflow>.<task>".
// Workflow names and task ids may themselves contain dots, so the workflow
// name is stripped as a whole; names without that prefix fall back to
// everything after the first dot.
func taskKey(workflow, nodeName string) (string, bool) {
	if key, ok := strings.CutPrefix(nodeName, workflow+"."); ok {
		return key, key != ""
	}
	_, key, ok := strings.Cut(nodeName, ".")
	return key, ok && key != ""
}

func cloneDeps(deps []string) []string {
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
