// Package edits defines the structured shapes the edit persona uses to propose file
// changes: range replacements and line insertions, grouped per file.
//
// The package validates those shapes at the boundary and passes them through
// unchanged. It does not interpret or apply edits; applying them to real file
// content is left to the caller that receives the proposal.
package edits

import (
	"fmt"
)

const (
	ToolEditFileLines     = "edit_file_lines"
	ToolInsertCodeAtLines = "insert_code_at_lines"
)

// EditOperation replaces the inclusive line range [LineStart, LineEnd] with NewContent.
type EditOperation struct {
	LineStart  int    `json:"line_start" yaml:"line_start" jsonschema:"minimum=1,description=First line to replace (1-based)"`
	LineEnd    int    `json:"line_end" yaml:"line_end" jsonschema:"minimum=1,description=Last line to replace (inclusive)"`
	NewContent string `json:"new_content" yaml:"new_content" jsonschema:"description=Replacement text for the whole range"`
}

// InsertionOperation inserts Code at InsertLine without removing existing lines.
type InsertionOperation struct {
	InsertLine int    `json:"insert_line" yaml:"insert_line" jsonschema:"minimum=1,description=Line at which the code is inserted (1-based)"`
	Code       string `json:"code" yaml:"code" jsonschema:"description=Code to insert"`
}

// FileEdits groups all range edits for one file.
type FileEdits struct {
	FileName string          `json:"file_name" yaml:"file_name" jsonschema:"minLength=1,description=Name of the file to edit"`
	Edits    []EditOperation `json:"edits" yaml:"edits"`
}

// FileInsertions groups all insertions for one file.
type FileInsertions struct {
	FileName   string               `json:"file_name" yaml:"file_name" jsonschema:"minLength=1,description=Name of the file to insert into"`
	Insertions []InsertionOperation `json:"insertions" yaml:"insertions"`
}

// Payload is the closed set of tool-call payloads: EditBatch or InsertionBatch.
type Payload interface {
	ToolName() string
	Validate() error
	isPayload()
}

// EditBatch is the argument of edit_file_lines: range edits across several files.
type EditBatch struct {
	Changes []FileEdits `json:"changes" yaml:"changes" jsonschema:"description=One entry per file with all range edits for that file"`
}

// InsertionBatch is the argument of insert_code_at_lines: insertions across several files.
type InsertionBatch struct {
	Changes []FileInsertions `json:"changes" yaml:"changes" jsonschema:"description=One entry per file with all insertions for that file"`
}

func (EditBatch) ToolName() string      { return ToolEditFileLines }
func (InsertionBatch) ToolName() string { return ToolInsertCodeAtLines }

func (EditBatch) isPayload()      {}
func (InsertionBatch) isPayload() {}

func (b EditBatch) Validate() error {
	var problems []string
	if b.Changes == nil {
		problems = append(problems, "changes: is required")
	}
	for i, fe := range b.Changes {
		if fe.FileName == "" {
			problems = append(problems, fmt.Sprintf("changes.%d.file_name: is required", i))
		}
		if fe.Edits == nil {
			problems = append(problems, fmt.Sprintf("changes.%d.edits: is required", i))
		}
		for j, e := range fe.Edits {
			if e.LineStart < 1 {
				problems = append(problems, fmt.Sprintf("changes.%d.edits.%d.line_start: must be >= 1", i, j))
			}
			if e.LineStart > e.LineEnd {
				problems = append(problems, fmt.Sprintf(
					"changes.%d.edits.%d: line_start (%d) must not be greater than line_end (%d)",
					i, j, e.LineStart, e.LineEnd))
			}
		}
	}
	if len(problems) > 0 {
		return &SchemaValidationError{Tool: ToolEditFileLines, Problems: problems}
	}
	return nil
}

func (b InsertionBatch) Validate() error {
	var problems []string
	if b.Changes == nil {
		problems = append(problems, "changes: is required")
	}
	for i, fi := range b.Changes {
		if fi.FileName == "" {
			problems = append(problems, fmt.Sprintf("changes.%d.file_name: is required", i))
		}
		if fi.Insertions == nil {
			problems = append(problems, fmt.Sprintf("changes.%d.insertions: is required", i))
		}
		for j, ins := range fi.Insertions {
			if ins.InsertLine < 1 {
				problems = append(problems, fmt.Sprintf("changes.%d.insertions.%d.insert_line: must be >= 1", i, j))
			}
		}
	}
	if len(problems) > 0 {
		return &SchemaValidationError{Tool: ToolInsertCodeAtLines, Problems: problems}
	}
	return nil
}

var (
	_ Payload = EditBatch{}
	_ Payload = InsertionBatch{}
)
