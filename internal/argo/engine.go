package argo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Engine is the workflow engine the manager drives. Client implements it
// against the Argo Server REST API; tests substitute fakes.
type Engine interface {
	// Create submits wf and returns the created workflow with its generated name.
	Create(ctx context.Context, namespace string, wf *Workflow) (*Workflow, error)

	// List returns every workflow in the namespace.
	List(ctx context.Context, namespace string) ([]Workflow, error)

	Get(ctx context.Context, namespace, name string) (*Workflow, error)
	Delete(ctx context.Context, namespace, name string) error

	Stop(ctx context.Context, namespace, name string) (*Workflow, error)
	Suspend(ctx context.Context, namespace, name string) (*Workflow, error)
	Resume(ctx context.Context, namespace, name string) (*Workflow, error)

	// Logs returns the main container log of one pod of the workflow.
	Logs(ctx context.Context, namespace, name, podName string) (string, error)
}

// APIError is a non-2xx response from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("argo server: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("argo server: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an engine response saying the workflow
// does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
