package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// TaskKind identifies what a task does when its runner starts inside the
// workflow container.
type TaskKind string

// Task kinds understood by the MDT client runner image.
const (
	KindSet       TaskKind = "set"
	KindCopy      TaskKind = "copy"
	KindHTTP      TaskKind = "http"
	KindProgram   TaskKind = "program"
	KindOperation TaskKind = "operation"
)

// legacyKinds maps the task class names used by older model documents to
// their kind.
var legacyKinds = map[string]TaskKind{
	"mdt.task.builtin.SetTask":       KindSet,
	"mdt.task.builtin.CopyTask":      KindCopy,
	"mdt.task.builtin.HttpTask":      KindHTTP,
	"mdt.task.builtin.ProgramTask":   KindProgram,
	"mdt.task.skku.AASOperationTask": KindOperation,
}

// ParseTaskKind converts a kind tag, or a legacy task class name, to a TaskKind.
func ParseTaskKind(s string) (TaskKind, error) {
	k := TaskKind(strings.ToLower(s))
	if k.Validate() == nil {
		return k, nil
	}
	if k, ok := legacyKinds[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown task kind %q", ErrInvalidModel, s)
}

// Validate reports whether k is one of the known kinds.
func (k TaskKind) Validate() error {
	switch k {
	case KindSet, KindCopy, KindHTTP, KindProgram, KindOperation:
		return nil
	default:
		return fmt.Errorf("%w: unknown task kind %q", ErrInvalidModel, string(k))
	}
}

// Runner returns the launcher entry point that executes tasks of this kind.
func (k TaskKind) Runner() string {
	switch k {
	case KindSet:
		return "mdt.task.builtin.SetTaskRunner"
	case KindCopy:
		return "mdt.task.builtin.CopyTaskRunner"
	case KindHTTP:
		return "mdt.task.builtin.HttpTaskRunner"
	case KindProgram:
		return "mdt.task.builtin.ProgramTaskRunner"
	case KindOperation:
		return "mdt.task.skku.AASOperationTaskRunner"
	default:
		return ""
	}
}

// UnmarshalJSON accepts both kind tags and legacy task class names.
func (k *TaskKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTaskKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Variable is an input or output binding of a task. Exactly one of Value and
// Reference is set: Value holds a literal, Reference points at an element
// or another task's output (e.g. "param:test:Data").
type Variable struct {
	Name      string `json:"name"`
	Value     any    `json:"value,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// IsReference reports whether v is bound by reference rather than by value.
func (v Variable) IsReference() bool {
	return v.Reference != ""
}

// Validate checks that the variable is named and bound exactly once.
func (v Variable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: variable name is empty", ErrInvalidModel)
	}
	if v.Value != nil && v.Reference != "" {
		return fmt.Errorf("%w: variable %q has both a value and a reference", ErrInvalidModel, v.Name)
	}
	if v.Value == nil && v.Reference == "" {
		return fmt.Errorf("%w: variable %q has neither a value nor a reference", ErrInvalidModel, v.Name)
	}
	return nil
}

// maxTaskIDLength is the DNS subdomain length limit Argo applies to task names.
const maxTaskIDLength = 253

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ValidSubdomainName reports whether name is a valid RFC 1123 DNS subdomain:
// lowercase alphanumerics, '-' and '.', starting and ending alphanumeric, at
// most 253 characters.
func ValidSubdomainName(name string) bool {
	return len(name) > 0 && len(name) <= maxTaskIDLength && subdomainPattern.MatchString(name)
}

// TaskDescriptor declares one task of a workflow model.
type TaskDescriptor struct {
	ID              string            `json:"id"`
	Kind            TaskKind          `json:"type"`
	Dependencies    []string          `json:"dependencies,omitempty"`
	InputVariables  []Variable        `json:"inputVariables,omitempty"`
	OutputVariables []Variable        `json:"outputVariables,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

// Validate checks the task in isolation; cross-task rules are checked by
// TaskGraphModel.Validate.
func (t *TaskDescriptor) Validate() error {
	if !ValidSubdomainName(t.ID) {
		return fmt.Errorf("%w: task id %q is not a valid RFC 1123 subdomain name", ErrInvalidModel, t.ID)
	}
	if err := t.Kind.Validate(); err != nil {
		return fmt.Errorf("task %q: %w", t.ID, err)
	}
	if err := validateVariables(t.InputVariables); err != nil {
		return fmt.Errorf("task %q input: %w", t.ID, err)
	}
	if err := validateVariables(t.OutputVariables); err != nil {
		return fmt.Errorf("task %q output: %w", t.ID, err)
	}
	return nil
}

func validateVariables(vars []Variable) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: duplicate variable %q", ErrInvalidModel, v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// taskFlag precedes the encoded descriptor on the runner command line.
const taskFlag = "--task"

// EncodeTask produces the runner arguments that carry t to the container.
// The runner decodes them with DecodeTask and sees the descriptor verbatim.
func EncodeTask(t *TaskDescriptor) ([]string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task %q: %w", t.ID, err)
	}
	return []string{taskFlag, base64.RawURLEncoding.EncodeToString(data)}, nil
}

// DecodeTask reverses EncodeTask. Arguments before the task flag are ignored.
func DecodeTask(args []string) (*TaskDescriptor, error) {
	for i, arg := range args {
		if arg != taskFlag {
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("%s: missing value", taskFlag)
		}
		data, err := base64.RawURLEncoding.DecodeString(args[i+1])
		if err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		var t TaskDescriptor
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task: %w", err)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%s: not found in arguments", taskFlag)
}
