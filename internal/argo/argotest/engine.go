// Package argotest provides an in-memory argo.Engine for tests.
package argotest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
)

// CreatedAt is the creation timestamp Engine stamps on created workflows.
var CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Engine keeps workflows in memory and answers like an Argo server.
// Created workflows are named GenerateName followed by a five-digit
// sequence number. Set the exported fields before use; they are read
// under the engine's lock.
type Engine struct {
	mu        sync.Mutex
	workflows map[string]*argo.Workflow
	seq       int

	// FailDelete makes Delete of the named workflows fail.
	FailDelete map[string]error
	// Err, when set, fails every call.
	Err error

	// Submitted records every workflow passed to Create.
	Submitted []*argo.Workflow
	// Actions records stop, suspend and resume calls as "verb:name".
	Actions []string
}

var _ argo.Engine = (*Engine)(nil)

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		workflows:  map[string]*argo.Workflow{},
		FailDelete: map[string]error{},
	}
}

// NotFound returns the error the Argo server reports for a missing workflow.
func NotFound(name string) error {
	return &argo.APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("workflows.argoproj.io %q not found", name)}
}

// Put stores wf under its metadata name, replacing any workflow there.
func (f *Engine) Put(wf *argo.Workflow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workflows[wf.Metadata.Name] = wf
}

// Create stores a copy of wf under a generated name with an empty status.
func (f *Engine) Create(_ context.Context, ns string, wf *argo.Workflow) (*argo.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Submitted = append(f.Submitted, wf)

	f.seq++
	out := *wf
	out.Metadata.Name = fmt.Sprintf("%s%05d", wf.Metadata.GenerateName, f.seq)
	out.Metadata.Namespace = ns
	ts := CreatedAt
	out.Metadata.CreationTimestamp = &ts
	out.Status = &argo.WorkflowStatus{}
	f.workflows[out.Metadata.Name] = &out

	cp := out
	return &cp, nil
}

// List returns every stored workflow, sorted by name.
func (f *Engine) List(context.Context, string) ([]argo.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	names := make([]string, 0, len(f.workflows))
	for name := range f.workflows {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]argo.Workflow, 0, len(names))
	for _, name := range names {
		out = append(out, *f.workflows[name])
	}
	return out, nil
}

// Get returns a copy of the named workflow.
func (f *Engine) Get(_ context.Context, _, name string) (*argo.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	wf, ok := f.workflows[name]
	if !ok {
		return nil, NotFound(name)
	}
	cp := *wf
	return &cp, nil
}

// Delete removes the named workflow unless FailDelete names it.
func (f *Engine) Delete(_ context.Context, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if err, ok := f.FailDelete[name]; ok {
		return err
	}
	if _, ok := f.workflows[name]; !ok {
		return NotFound(name)
	}
	delete(f.workflows, name)
	return nil
}

func (f *Engine) setPhase(op, name, phase string) (*argo.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	wf, ok := f.workflows[name]
	if !ok {
		return nil, NotFound(name)
	}
	f.Actions = append(f.Actions, op+":"+name)
	if wf.Status == nil {
		wf.Status = &argo.WorkflowStatus{}
	}
	wf.Status.Phase = phase
	cp := *wf
	return &cp, nil
}

// Stop marks the named workflow Failed.
func (f *Engine) Stop(_ context.Context, _, name string) (*argo.Workflow, error) {
	return f.setPhase("stop", name, "Failed")
}

// Suspend records the call; the workflow stays Running.
func (f *Engine) Suspend(_ context.Context, _, name string) (*argo.Workflow, error) {
	return f.setPhase("suspend", name, "Running")
}

// Resume marks the named workflow Running.
func (f *Engine) Resume(_ context.Context, _, name string) (*argo.Workflow, error) {
	return f.setPhase("resume", name, "Running")
}

// Logs returns a fixed line naming podName.
func (f *Engine) Logs(_ context.Context, _, name, podName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if _, ok := f.workflows[name]; !ok {
		return "", NotFound(name)
	}
	return "log of " + podName, nil
}
