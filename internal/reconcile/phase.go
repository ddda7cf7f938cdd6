package reconcile

import (
	"sort"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
)

// Status is the manager's view of a workflow or task state.
type Status string

// Statuses reported in workflow views.
const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusStarting   Status = "STARTING"
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusUnknown    Status = "UNKNOWN"
)

// Argo node and workflow phases.
const (
	PhasePending   = "Pending"
	PhaseRunning   = "Running"
	PhaseSucceeded = "Succeeded"
	PhaseFailed    = "Failed"
	PhaseSkipped   = "Skipped"
)

// PhaseToStatus maps an Argo phase to a Status. The empty phase means the
// engine has not reported one yet. Unrecognized phases map to StatusUnknown.
func PhaseToStatus(phase string) Status {
	switch phase {
	case "":
		return StatusNotStarted
	case PhaseRunning:
		return StatusRunning
	case PhaseSucceeded:
		return StatusCompleted
	case PhaseFailed:
		return StatusFailed
	case PhasePending:
		return StatusStarting
	case PhaseSkipped:
		return StatusNotStarted
	}
	return StatusUnknown
}

// UnknownPhases returns the distinct phases of wf and its nodes that
// PhaseToStatus does not recognize, sorted.
func UnknownPhases(wf *argo.Workflow) []string {
	if wf.Status == nil {
		return nil
	}
	seen := map[string]bool{}
	check := func(phase string) {
		if PhaseToStatus(phase) == StatusUnknown {
			seen[phase] = true
		}
	}
	check(wf.Status.Phase)
	for _, node := range wf.Status.Nodes {
		check(node.Phase)
	}

	out := make([]string, 0, len(seen))
	for phase := range seen {
		out = append(out, phase)
	}
	sort.Strings(out)
	return out
}
