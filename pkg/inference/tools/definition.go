package tools

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolDefinition represents a structural tool that can be bound to a model call.
// The server never executes tools: a definition only describes the shape the
// model is asked to populate.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Tags        []string           `json:"tags,omitempty"`
	Version     string             `json:"version,omitempty"`
}

// NewToolFromType creates a ToolDefinition whose parameters schema is reflected from
// the type of sample, which must be a struct or a pointer to one.
func NewToolFromType(name, description string, sample interface{}) (*ToolDefinition, error) {
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	t := reflect.TypeOf(sample)
	if t == nil {
		return nil, errors.New("sample must not be nil")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool %s: parameters must be a struct, got %s", name, t.Kind())
	}

	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(reflect.New(t).Elem().Interface())
	// providers reject the $schema and $id keywords on function parameters
	schema.Version = ""
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}, nil
}

// ParametersJSON returns the parameters schema as a JSON document.
func (td *ToolDefinition) ParametersJSON() ([]byte, error) {
	if td.Parameters == nil {
		return []byte(`{"type":"object"}`), nil
	}
	b, err := json.Marshal(td.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal parameters of tool %s", td.Name)
	}
	return b, nil
}

// ToolCall is a tool invocation requested by the model, with raw JSON arguments.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
