package edits

import (
	"encoding/json"
	"testing"

	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSchemaError(t *testing.T, err error) *SchemaValidationError {
	t.Helper()
	require.Error(t, err)
	var sve *SchemaValidationError
	require.True(t, errors.As(err, &sve), "expected SchemaValidationError, got %T: %v", err, err)
	return sve
}

func TestDecodeEditBatchPassesThroughUnchanged(t *testing.T) {
	args := []byte(`{"changes":[{"file_name":"x.py","edits":[{"line_start":1,"line_end":2,"new_content":"def bar():"}]}]}`)
	p, err := Decode(ToolEditFileLines, args)
	require.NoError(t, err)

	batch, ok := p.(EditBatch)
	require.True(t, ok)
	assert.Equal(t, EditBatch{Changes: []FileEdits{{
		FileName: "x.py",
		Edits:    []EditOperation{{LineStart: 1, LineEnd: 2, NewContent: "def bar():"}},
	}}}, batch)

	out, err := json.Marshal(batch)
	require.NoError(t, err)
	assert.JSONEq(t, string(args), string(out))
}

func TestDecodeInsertionBatch(t *testing.T) {
	args := []byte(`{"changes":[{"file_name":"x.py","insertions":[{"insert_line":3,"code":"print(1)"}]}]}`)
	p, err := Decode(ToolInsertCodeAtLines, args)
	require.NoError(t, err)

	batch, ok := p.(InsertionBatch)
	require.True(t, ok)
	assert.Equal(t, ToolInsertCodeAtLines, batch.ToolName())
	assert.Equal(t, 3, batch.Changes[0].Insertions[0].InsertLine)
}

func TestDecodeRejectsInvertedRange(t *testing.T) {
	args := []byte(`{"changes":[{"file_name":"x.py","edits":[{"line_start":5,"line_end":2,"new_content":""}]}]}`)
	_, err := Decode(ToolEditFileLines, args)
	sve := requireSchemaError(t, err)
	assert.Equal(t, ToolEditFileLines, sve.Tool)
	assert.Contains(t, sve.Error(), "line_start (5) must not be greater than line_end (2)")
}

func TestDecodeRejectsMissingFileName(t *testing.T) {
	args := []byte(`{"changes":[{"edits":[{"line_start":1,"line_end":1,"new_content":"x"}]}]}`)
	_, err := Decode(ToolEditFileLines, args)
	requireSchemaError(t, err)

	args = []byte(`{"changes":[{"insertions":[{"insert_line":1,"code":"x"}]}]}`)
	_, err = Decode(ToolInsertCodeAtLines, args)
	requireSchemaError(t, err)
}

func TestDecodeRejectsWrongShapes(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"changes":`,
		"empty":             ``,
		"changes missing":   `{}`,
		"changes not array": `{"changes":{"file_name":"x.py"}}`,
		"line as string":    `{"changes":[{"file_name":"x.py","edits":[{"line_start":"1","line_end":1,"new_content":"x"}]}]}`,
		"zero line":         `{"changes":[{"file_name":"x.py","edits":[{"line_start":0,"line_end":1,"new_content":"x"}]}]}`,
		"edits missing":     `{"changes":[{"file_name":"x.py"}]}`,
		"empty file name":   `{"changes":[{"file_name":"","edits":[]}]}`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(ToolEditFileLines, []byte(args))
			requireSchemaError(t, err)
		})
	}
}

func TestDecodeRejectsUnknownTool(t *testing.T) {
	_, err := Decode("delete_file", []byte(`{"changes":[]}`))
	sve := requireSchemaError(t, err)
	assert.Equal(t, "delete_file", sve.Tool)
}

func TestValidateDirectlyConstructedBatches(t *testing.T) {
	require.NoError(t, EditBatch{Changes: []FileEdits{{FileName: "a", Edits: []EditOperation{{LineStart: 2, LineEnd: 2}}}}}.Validate())
	requireSchemaError(t, EditBatch{Changes: []FileEdits{{FileName: "a", Edits: []EditOperation{{LineStart: 3, LineEnd: 2}}}}}.Validate())
	requireSchemaError(t, EditBatch{}.Validate())
	requireSchemaError(t, InsertionBatch{Changes: []FileInsertions{{FileName: "", Insertions: []InsertionOperation{}}}}.Validate())
	require.NoError(t, InsertionBatch{Changes: []FileInsertions{}}.Validate())
}

func TestToolDefinitionsAndRegistration(t *testing.T) {
	defs, err := ToolDefinitions()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, ToolEditFileLines, defs[0].Name)
	assert.Equal(t, ToolInsertCodeAtLines, defs[1].Name)
	assert.Contains(t, defs[0].Parameters.Required, "changes")

	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, RegisterTools(reg))
	assert.True(t, reg.HasTool(ToolEditFileLines))
	assert.True(t, reg.HasTool(ToolInsertCodeAtLines))
}

func TestToolCallJSON(t *testing.T) {
	tc := ToolCall{
		ID:   "call_1",
		Name: ToolInsertCodeAtLines,
		Payload: InsertionBatch{Changes: []FileInsertions{{
			FileName:   "a.py",
			Insertions: []InsertionOperation{{InsertLine: 1, Code: "import os"}},
		}}},
	}
	b, err := json.Marshal(tc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"call_1","name":"insert_code_at_lines","type":"tool_call",
		"args":{"changes":[{"file_name":"a.py","insertions":[{"insert_line":1,"code":"import os"}]}]}}`, string(b))

	var back ToolCall
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tc, back)
}
