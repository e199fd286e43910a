// Package agents adapts an inference engine to the two personas. The ask agent
// is a plain chat call; the edit agent binds the edit tools and decodes the tool
// calls the model returns into typed proposals.
package agents

import (
	"context"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/edits"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Reply is the normalized output of one agent invocation.
type Reply struct {
	Content   string
	ToolCalls []edits.ToolCall
	Usage     *engine.Usage
}

type Agent interface {
	Persona() conversation.Persona
	Invoke(ctx context.Context, messages []conversation.ChatMessage) (*Reply, error)
}

// asUpstream makes sure every engine failure reaches the caller as an
// UpstreamModelError.
func asUpstream(err error) error {
	var ume *engine.UpstreamModelError
	if errors.As(err, &ume) {
		return err
	}
	return &engine.UpstreamModelError{Err: err}
}

type AskAgent struct {
	engine engine.Engine
}

func NewAskAgent(e engine.Engine) *AskAgent {
	return &AskAgent{engine: e}
}

func (a *AskAgent) Persona() conversation.Persona {
	return conversation.PersonaAsk
}

func (a *AskAgent) Invoke(ctx context.Context, messages []conversation.ChatMessage) (*Reply, error) {
	resp, err := a.engine.RunInference(ctx, messages)
	if err != nil {
		return nil, asUpstream(err)
	}
	if len(resp.ToolCalls) > 0 {
		log.Warn().Int("tool_call_count", len(resp.ToolCalls)).Msg("ask agent: ignoring tool calls, no tools are bound")
	}
	return &Reply{Content: resp.Content, Usage: resp.Usage}, nil
}

type EditAgent struct {
	engine   engine.Engine
	registry tools.ToolRegistry
}

// NewEditAgent registers edit_file_lines and insert_code_at_lines and returns an
// agent that binds them to every call.
func NewEditAgent(e engine.Engine) (*EditAgent, error) {
	reg := tools.NewInMemoryToolRegistry()
	if err := edits.RegisterTools(reg); err != nil {
		return nil, errors.Wrap(err, "register edit tools")
	}
	return &EditAgent{engine: e, registry: reg}, nil
}

func (a *EditAgent) Persona() conversation.Persona {
	return conversation.PersonaEdit
}

func (a *EditAgent) Registry() tools.ToolRegistry {
	return a.registry
}

// Invoke performs one tool-augmented call. Any tool call whose arguments do not
// match its schema fails the whole invocation with an edits.SchemaValidationError.
func (a *EditAgent) Invoke(ctx context.Context, messages []conversation.ChatMessage) (*Reply, error) {
	resp, err := a.engine.RunInference(ctx, messages,
		engine.WithTools(a.registry),
		engine.WithToolChoice(engine.ToolChoiceAuto),
	)
	if err != nil {
		return nil, asUpstream(err)
	}

	reply := &Reply{Content: resp.Content, Usage: resp.Usage}
	for _, tc := range resp.ToolCalls {
		payload, err := edits.Decode(tc.Name, tc.Arguments)
		if err != nil {
			log.Warn().Err(err).Str("tool_call_id", tc.ID).Str("tool", tc.Name).Msg("edit agent: rejected tool call payload")
			return nil, err
		}
		reply.ToolCalls = append(reply.ToolCalls, edits.ToolCall{
			ID:      tc.ID,
			Name:    tc.Name,
			Payload: payload,
		})
	}

	log.Debug().Int("tool_call_count", len(reply.ToolCalls)).Msg("edit agent: invocation finished")
	return reply, nil
}

var (
	_ Agent = (*AskAgent)(nil)
	_ Agent = (*EditAgent)(nil)
)
