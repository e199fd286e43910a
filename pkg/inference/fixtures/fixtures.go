// Package fixtures provides a scripted engine.Engine that replays canned
// responses, for tests of the layers above the provider.
package fixtures

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Step is one scripted reply. A non-empty Error makes the call fail with an
// UpstreamModelError carrying that message.
type Step struct {
	Content   string         `yaml:"content,omitempty"`
	ToolCalls []ToolCallStep `yaml:"tool_calls,omitempty"`
	Error     string         `yaml:"error,omitempty"`
}

// ToolCallStep holds arguments as a YAML value or as a raw JSON string in ArgumentsJSON.
type ToolCallStep struct {
	ID            string      `yaml:"id"`
	Name          string      `yaml:"name"`
	Arguments     interface{} `yaml:"arguments,omitempty"`
	ArgumentsJSON string      `yaml:"arguments_json,omitempty"`
}

// FixtureDoc is the YAML layout of a script file.
type FixtureDoc struct {
	Version int    `yaml:"version,omitempty"`
	Steps   []Step `yaml:"steps"`
}

// Call records what one RunInference invocation received.
type Call struct {
	Messages []conversation.ChatMessage
	Tools    []string
	Choice   engine.ToolChoice
}

type ScriptedEngine struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

func NewScriptedEngine(steps ...Step) *ScriptedEngine {
	return &ScriptedEngine{steps: steps}
}

// LoadScript reads a FixtureDoc from a YAML file.
func LoadScript(path string) (*ScriptedEngine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(b)
}

func ParseScript(b []byte) (*ScriptedEngine, error) {
	var doc FixtureDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "parse fixture")
	}
	return NewScriptedEngine(doc.Steps...), nil
}

func (e *ScriptedEngine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *ScriptedEngine) RunInference(ctx context.Context, messages []conversation.ChatMessage, options ...engine.Option) (*engine.Response, error) {
	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}

	e.mu.Lock()
	call := Call{
		Messages: append([]conversation.ChatMessage(nil), messages...),
		Choice:   config.ToolChoice,
	}
	if config.Tools != nil {
		for _, t := range config.Tools.ListTools() {
			call.Tools = append(call.Tools, t.Name)
		}
	}
	e.calls = append(e.calls, call)
	if len(e.steps) == 0 {
		e.mu.Unlock()
		return nil, &engine.UpstreamModelError{Provider: "fixture", Err: errors.New("script exhausted")}
	}
	step := e.steps[0]
	e.steps = e.steps[1:]
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &engine.UpstreamModelError{Provider: "fixture", Err: err}
	}
	if step.Error != "" {
		return nil, &engine.UpstreamModelError{Provider: "fixture", Err: errors.New(step.Error)}
	}

	resp := &engine.Response{Content: step.Content, StopReason: "stop", Model: "fixture"}
	for _, tc := range step.ToolCalls {
		args := json.RawMessage(tc.ArgumentsJSON)
		if tc.ArgumentsJSON == "" {
			b, err := json.Marshal(tc.Arguments)
			if err != nil {
				return nil, errors.Wrapf(err, "marshal arguments of %s", tc.ID)
			}
			args = b
		}
		resp.ToolCalls = append(resp.ToolCalls, tools.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: args})
		resp.StopReason = "tool_calls"
	}
	return resp, nil
}

var _ engine.Engine = (*ScriptedEngine)(nil)
