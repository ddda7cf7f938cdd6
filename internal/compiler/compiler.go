// Package compiler turns a workflow model into an Argo workflow submission
// document. Each task becomes a container template running the MDT client
// image; a single DAG template wires the tasks together.
package compiler

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

// Workflow parameter names. Container templates refer to them instead of
// embedding the values, so one compiled document can be resubmitted against
// another endpoint or image.
const (
	ParamEndpoint    = "mdt-endpoint"
	ParamClientImage = "mdt-client-image"
)

// DAGTemplateName is the entrypoint template of every compiled workflow.
const DAGTemplateName = "dag"

const (
	templateSuffix = "-template"
	clientJar      = "mdt-client-all.jar"
	endpointEnv    = "MDT_ENDPOINT"
)

// TemplateName returns the container template name for a task id.
func TemplateName(taskID string) string {
	return taskID + templateSuffix
}

// Compile validates m and builds its submission document. endpoint and
// image are passed through verbatim as workflow arguments.
func Compile(m *model.TaskGraphModel, endpoint, image string) (*argo.Workflow, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	// The DAG template goes first; slot 0 is filled once its tasks are known.
	templates := make([]argo.Template, 1, len(m.Tasks)+1)
	dagTasks := make([]argo.DAGTask, 0, len(m.Tasks))

	for i := range m.Tasks {
		t := &m.Tasks[i]
		tmpl, err := containerTemplate(t)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
		dagTasks = append(dagTasks, argo.DAGTask{
			Name:         t.ID,
			Template:     tmpl.Name,
			Dependencies: slices.Clone(t.Dependencies),
		})
	}
	templates[0] = argo.Template{
		Name: DAGTemplateName,
		DAG:  &argo.DAGTemplate{Tasks: dagTasks},
	}

	return &argo.Workflow{
		APIVersion: argo.APIVersion,
		Kind:       argo.KindWorkflow,
		Metadata: argo.ObjectMeta{
			GenerateName: strings.ToLower(m.ID) + "-",
		},
		Spec: argo.WorkflowSpec{
			Entrypoint: DAGTemplateName,
			Arguments: &argo.Arguments{
				Parameters: []argo.Parameter{
					{Name: ParamEndpoint, Value: endpoint},
					{Name: ParamClientImage, Value: image},
				},
			},
			Templates: templates,
		},
	}, nil
}

func containerTemplate(t *model.TaskDescriptor) (argo.Template, error) {
	encoded, err := model.EncodeTask(t)
	if err != nil {
		return argo.Template{}, err
	}
	args := append([]string{"-cp", clientJar, t.Kind.Runner()}, encoded...)

	return argo.Template{
		Name: TemplateName(t.ID),
		Container: &argo.Container{
			Image:   parameterRef(ParamClientImage),
			Command: []string{"java"},
			Args:    args,
			Env: []argo.EnvVar{
				{Name: endpointEnv, Value: parameterRef(ParamEndpoint)},
			},
		},
	}, nil
}

func parameterRef(name string) string {
	return "{{workflow.parameters." + name + "}}"
}

// RenderYAML renders a workflow document as YAML, the form operators feed to
// `argo submit`.
func RenderYAML(wf *argo.Workflow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return nil, fmt.Errorf("encode workflow yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush workflow yaml: %w", err)
	}
	return buf.Bytes(), nil
}
