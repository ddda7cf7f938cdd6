package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModel is returned when a workflow model or one of its tasks is malformed.
var ErrInvalidModel = errors.New("invalid workflow model")

// ErrCycleDetected is returned, wrapped with ErrInvalidModel, when task
// dependencies form a cycle.
var ErrCycleDetected = errors.New("dependency cycle detected")

// maxModelIDLength matches the width of the id column in the model store.
const maxModelIDLength = 64

// TaskGraphModel is a workflow model: an ordered list of tasks whose
// dependencies form a DAG.
type TaskGraphModel struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Tasks       []TaskDescriptor `json:"taskDescriptors"`
}

// Task returns the task with the given id.
func (m *TaskGraphModel) Task(id string) (*TaskDescriptor, bool) {
	for i := range m.Tasks {
		if m.Tasks[i].ID == id {
			return &m.Tasks[i], true
		}
	}
	return nil, false
}

// TaskIDs returns the task ids in declaration order.
func (m *TaskGraphModel) TaskIDs() []string {
	ids := make([]string, len(m.Tasks))
	for i, t := range m.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Validate checks every task, that task ids are unique, that dependencies
// refer to tasks of this model and that they form no cycle.
func (m *TaskGraphModel) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: model id is empty", ErrInvalidModel)
	}
	if len(m.ID) > maxModelIDLength {
		return fmt.Errorf("%w: model id %q exceeds %d characters", ErrInvalidModel, m.ID, maxModelIDLength)
	}
	// The lower-cased id prefixes every workflow instance name.
	if !ValidSubdomainName(strings.ToLower(m.ID)) {
		return fmt.Errorf("%w: model id %q cannot prefix a workflow name", ErrInvalidModel, m.ID)
	}

	index := make(map[string]int, len(m.Tasks))
	for i := range m.Tasks {
		t := &m.Tasks[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := index[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidModel, t.ID)
		}
		index[t.ID] = i
	}

	for _, t := range m.Tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return fmt.Errorf("%w: task %q depends on itself", ErrInvalidModel, t.ID)
			}
			if _, ok := index[dep]; !ok {
				return fmt.Errorf("%w: task %q depends on unknown task %q", ErrInvalidModel, t.ID, dep)
			}
		}
	}

	return m.validateAcyclic(index)
}

// validateAcyclic runs Kahn's algorithm over the dependency edges and, if
// some tasks are never released, extracts one cycle for the error message.
func (m *TaskGraphModel) validateAcyclic(index map[string]int) error {
	n := len(m.Tasks)
	indeg := make([]int, n)
	dependents := make([][]int, n)
	for i, t := range m.Tasks {
		for _, dep := range t.Dependencies {
			j := index[dep]
			dependents[j] = append(dependents[j], i)
			indeg[i]++
		}
	}

	ready := make([]int, 0, n)
	for i := range indeg {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	released := 0
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		released++
		for _, d := range dependents[i] {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if released == n {
		return nil
	}

	cycle := m.findCycle(index)
	return fmt.Errorf("%w: %w: %s", ErrInvalidModel, ErrCycleDetected, strings.Join(cycle, " -> "))
}

// findCycle walks dependency edges depth-first in declaration order and
// returns the first cycle found, closed on its starting task.
func (m *TaskGraphModel) findCycle(index map[string]int) []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(m.Tasks))
	var stack []int
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		stack = append(stack, i)
		for _, dep := range m.Tasks[i].Dependencies {
			j := index[dep]
			switch color[j] {
			case white:
				if visit(j) {
					return true
				}
			case gray:
				start := 0
				for k, s := range stack {
					if s == j {
						start = k
						break
					}
				}
				for _, s := range stack[start:] {
					cycle = append(cycle, m.Tasks[s].ID)
				}
				cycle = append(cycle, m.Tasks[j].ID)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return false
	}

	for i := range m.Tasks {
		if color[i] == white && visit(i) {
			break
		}
	}
	return cycle
}
