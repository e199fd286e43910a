package edits

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const editFileLinesDescription = `Gather a batch of range edits across multiple files.
Each entry of changes describes all edits for one file:
{"file_name": <str>, "edits": [{"line_start": <int>, "line_end": <int>, "new_content": <str>}, ...]}.
The range [line_start, line_end] is inclusive and is replaced by new_content.
The edits are returned to the caller untouched; the caller performs the modification.`

const insertCodeAtLinesDescription = `Gather a batch of code-block insertions across multiple files.
Each entry of changes describes all insertions for one file:
{"file_name": <str>, "insertions": [{"insert_line": <int>, "code": <str>}, ...]}.
Code is inserted at insert_line without removing existing lines.
The insertions are returned to the caller untouched; the caller performs the insertion.`

// SchemaValidationError reports a tool-call payload that does not match its declared shape.
type SchemaValidationError struct {
	Tool     string
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	return "invalid " + e.Tool + " payload: " + strings.Join(e.Problems, "; ")
}

type toolSchema struct {
	def    *tools.ToolDefinition
	schema *gojsonschema.Schema
}

var (
	schemasOnce sync.Once
	schemas     map[string]*toolSchema
	schemasErr  error
)

func loadSchemas() (map[string]*toolSchema, error) {
	schemasOnce.Do(func() {
		ret := map[string]*toolSchema{}
		for _, tool := range []struct {
			name, description string
			sample            interface{}
		}{
			{ToolEditFileLines, editFileLinesDescription, EditBatch{}},
			{ToolInsertCodeAtLines, insertCodeAtLinesDescription, InsertionBatch{}},
		} {
			def, err := tools.NewToolFromType(tool.name, tool.description, tool.sample)
			if err != nil {
				schemasErr = err
				return
			}
			raw, err := def.ParametersJSON()
			if err != nil {
				schemasErr = err
				return
			}
			compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemasErr = errors.Wrapf(err, "compile schema of tool %s", tool.name)
				return
			}
			ret[tool.name] = &toolSchema{def: def, schema: compiled}
		}
		schemas = ret
	})
	return schemas, schemasErr
}

// ToolDefinitions returns the definitions of edit_file_lines and insert_code_at_lines.
func ToolDefinitions() ([]tools.ToolDefinition, error) {
	s, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	return []tools.ToolDefinition{
		*s[ToolEditFileLines].def,
		*s[ToolInsertCodeAtLines].def,
	}, nil
}

// RegisterTools registers both edit tools in the given registry.
func RegisterTools(reg tools.ToolRegistry) error {
	defs, err := ToolDefinitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := reg.RegisterTool(def.Name, def); err != nil {
			return err
		}
	}
	return nil
}

// Decode validates raw tool arguments against the schema of the named tool and
// returns the matching Payload variant. Anything that does not match is rejected
// with a SchemaValidationError; nothing is coerced.
func Decode(name string, args []byte) (Payload, error) {
	s, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	ts, ok := s[name]
	if !ok {
		return nil, &SchemaValidationError{Tool: name, Problems: []string{"unknown tool"}}
	}
	if len(bytes.TrimSpace(args)) == 0 {
		return nil, &SchemaValidationError{Tool: name, Problems: []string{"arguments are empty"}}
	}
	if !json.Valid(args) {
		return nil, &SchemaValidationError{Tool: name, Problems: []string{"arguments are not valid JSON"}}
	}

	result, err := ts.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, &SchemaValidationError{Tool: name, Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, re.String())
		}
		log.Debug().Str("tool", name).Strs("problems", problems).Msg("edits: tool payload failed schema validation")
		return nil, &SchemaValidationError{Tool: name, Problems: problems}
	}

	var payload Payload
	switch name {
	case ToolEditFileLines:
		var b EditBatch
		if err := json.Unmarshal(args, &b); err != nil {
			return nil, &SchemaValidationError{Tool: name, Problems: []string{err.Error()}}
		}
		payload = b
	case ToolInsertCodeAtLines:
		var b InsertionBatch
		if err := json.Unmarshal(args, &b); err != nil {
			return nil, &SchemaValidationError{Tool: name, Problems: []string{err.Error()}}
		}
		payload = b
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

// ToolCall is a decoded tool invocation proposed by the model.
type ToolCall struct {
	ID      string
	Name    string
	Payload Payload
}

type toolCallJSON struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type string          `json:"type"`
	Args json.RawMessage `json:"args"`
}

func (tc ToolCall) MarshalJSON() ([]byte, error) {
	args, err := json.Marshal(tc.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(toolCallJSON{
		ID:   tc.ID,
		Name: tc.Name,
		Type: "tool_call",
		Args: args,
	})
}

func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var raw toolCallJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := Decode(raw.Name, raw.Args)
	if err != nil {
		return err
	}
	tc.ID = raw.ID
	tc.Name = raw.Name
	tc.Payload = payload
	return nil
}
