package argo

import "time"

// Fixed header values of every workflow document.
const (
	APIVersion   = "argoproj.io/v1alpha1"
	KindWorkflow = "Workflow"
)

// NodeTypePod marks a node that ran a container template.
const NodeTypePod = "Pod"

// Workflow is an Argo workflow. A document built for submission has no
// Status; one returned by the engine carries the engine's snapshot of it.
type Workflow struct {
	APIVersion string          `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Kind       string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Metadata   ObjectMeta      `json:"metadata" yaml:"metadata"`
	Spec       WorkflowSpec    `json:"spec" yaml:"spec"`
	Status     *WorkflowStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// ObjectMeta is the subset of Kubernetes object metadata the manager uses.
type ObjectMeta struct {
	Name              string            `json:"name,omitempty" yaml:"name,omitempty"`
	GenerateName      string            `json:"generateName,omitempty" yaml:"generateName,omitempty"`
	Namespace         string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
}

// WorkflowSpec holds the entrypoint, the workflow-level arguments and the templates.
type WorkflowSpec struct {
	Entrypoint string     `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Arguments  *Arguments `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Templates  []Template `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Arguments are the parameters handed to the workflow at submission.
type Arguments struct {
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Parameter is a named string argument.
type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Template is either a container template or a DAG template. Exactly one
// of Container and DAG is set on templates produced by the compiler.
type Template struct {
	Name      string       `json:"name" yaml:"name"`
	Container *Container   `json:"container,omitempty" yaml:"container,omitempty"`
	DAG       *DAGTemplate `json:"dag,omitempty" yaml:"dag,omitempty"`
}

// Container is the container a template runs.
type Container struct {
	Image   string   `json:"image" yaml:"image"`
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []EnvVar `json:"env,omitempty" yaml:"env,omitempty"`
}

// EnvVar is a container environment variable.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// DAGTemplate lists the tasks of a DAG template.
type DAGTemplate struct {
	Tasks []DAGTask `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// DAGTask binds a DAG node to the template it runs.
type DAGTask struct {
	Name         string   `json:"name" yaml:"name"`
	Template     string   `json:"template" yaml:"template"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// WorkflowStatus is the engine-owned execution state.
type WorkflowStatus struct {
	Phase      string                `json:"phase,omitempty" yaml:"phase,omitempty"`
	StartedAt  *time.Time            `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	Message    string                `json:"message,omitempty" yaml:"message,omitempty"`
	Nodes      map[string]NodeStatus `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// NodeStatus is the state of one node of a running workflow. Node names look
// like "<workflow>.<dag task>" for the pods of a top-level DAG.
type NodeStatus struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	DisplayName string     `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Type        string     `json:"type" yaml:"type"`
	Phase       string     `json:"phase,omitempty" yaml:"phase,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	PodName     string     `json:"podName,omitempty" yaml:"podName,omitempty"`
	Message     string     `json:"message,omitempty" yaml:"message,omitempty"`
}

// DAGTemplate returns the template carrying the workflow's DAG: the
// entrypoint template if it has one, otherwise the first template that does.
func (wf *Workflow) DAGTemplate() (*Template, bool) {
	for i := range wf.Spec.Templates {
		t := &wf.Spec.Templates[i]
		if t.Name == wf.Spec.Entrypoint && t.DAG != nil {
			return t, true
		}
	}
	for i := range wf.Spec.Templates {
		if wf.Spec.Templates[i].DAG != nil {
			return &wf.Spec.Templates[i], true
		}
	}
	return nil, false
}
