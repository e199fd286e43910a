package openai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/go-go-golems/coder/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OpenAIEngine implements engine.Engine against any OpenAI compatible chat
// completions endpoint.
type OpenAIEngine struct {
	settings *settings.StepSettings
}

// NewOpenAIEngine validates the settings and returns an engine. A missing key or
// base URL fails here rather than on the first request.
func NewOpenAIEngine(stepSettings *settings.StepSettings) (*OpenAIEngine, error) {
	if stepSettings == nil || stepSettings.Chat == nil {
		return nil, errors.New("no chat settings")
	}
	if stepSettings.Chat.ApiType == nil {
		return nil, errors.New("no chat api type specified")
	}
	if stepSettings.Chat.Engine == nil || *stepSettings.Chat.Engine == "" {
		return nil, errors.New("no chat engine specified")
	}
	if _, err := MakeClient(stepSettings.API, *stepSettings.Chat.ApiType, stepSettings.Client); err != nil {
		return nil, err
	}
	return &OpenAIEngine{settings: stepSettings}, nil
}

func (e *OpenAIEngine) Settings() *settings.StepSettings {
	return e.settings
}

func (e *OpenAIEngine) upstreamError(err error) error {
	provider := ""
	if e.settings.Chat.ApiType != nil {
		provider = string(*e.settings.Chat.ApiType)
	}
	return &engine.UpstreamModelError{
		Provider: provider,
		Model:    *e.settings.Chat.Engine,
		Err:      err,
	}
}

// RunInference sends one chat completion request and normalizes the first choice.
func (e *OpenAIEngine) RunInference(
	ctx context.Context,
	messages []conversation.ChatMessage,
	options ...engine.Option,
) (*engine.Response, error) {
	config := engine.NewConfig()
	if err := engine.ApplyOptions(config, options...); err != nil {
		return nil, err
	}

	client, err := MakeClient(e.settings.API, *e.settings.Chat.ApiType, e.settings.Client)
	if err != nil {
		return nil, err
	}

	req, err := MakeCompletionRequest(e.settings, messages, config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Debug().
		Interface("settings", e.settings.GetMetadata()).
		Int("num_messages", len(messages)).
		Bool("tools", config.HasTools()).
		Msg("OpenAI RunInference started")

	resp, err := client.CreateChatCompletion(ctx, *req)
	if err != nil {
		log.Warn().Err(err).Str("model", req.Model).Dur("duration", time.Since(start)).Msg("OpenAI chat completion failed")
		return nil, e.upstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, e.upstreamError(errors.New("response contained no choices"))
	}

	choice := resp.Choices[0]
	ret := &engine.Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
		Usage: &engine.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, e.upstreamError(errors.Errorf("tool call %s has no function name", tc.ID))
		}
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		ret.ToolCalls = append(ret.ToolCalls, tools.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	log.Debug().
		Str("model", resp.Model).
		Str("stop_reason", ret.StopReason).
		Int("tool_call_count", len(ret.ToolCalls)).
		Int("input_tokens", ret.Usage.InputTokens).
		Int("output_tokens", ret.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("OpenAI RunInference finished")

	return ret, nil
}

var _ engine.Engine = (*OpenAIEngine)(nil)
