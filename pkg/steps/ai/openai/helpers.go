package openai

import (
	"net/http"
	"strings"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/steps/ai/settings"
	ai_types "github.com/go-go-golems/coder/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

var ErrMissingClientSettings = errors.New("missing client settings")

func isReasoningModel(engine string) bool {
	m := strings.ToLower(strings.TrimSpace(engine))
	return strings.HasPrefix(m, "o1") ||
		strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") ||
		strings.HasPrefix(m, "gpt-5")
}

// MakeClient builds a go-openai client for apiType. Mistral goes through the same
// client, pointed at its OpenAI compatible base URL.
func MakeClient(apiSettings *settings.APISettings, apiType ai_types.ApiType, clientSettings *settings.ClientSettings) (*go_openai.Client, error) {
	if apiSettings == nil {
		return nil, errors.New("no api settings")
	}
	apiKey, ok := apiSettings.APIKeys[string(apiType)+"-api-key"]
	if !ok || apiKey == "" {
		return nil, errors.Errorf("no API key for %s", apiType)
	}
	baseURL, ok := apiSettings.BaseUrls[string(apiType)+"-base-url"]
	if !ok || baseURL == "" {
		return nil, errors.Errorf("no base URL for %s", apiType)
	}
	config := go_openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	if clientSettings != nil {
		if clientSettings.Organization != nil {
			config.OrgID = *clientSettings.Organization
		}
		switch {
		case clientSettings.HTTPClient != nil:
			config.HTTPClient = clientSettings.HTTPClient
		case clientSettings.Timeout != nil:
			config.HTTPClient = &http.Client{Timeout: *clientSettings.Timeout}
		}
	}

	client := go_openai.NewClientWithConfig(config)
	return client, nil
}

func roleToOpenAI(role conversation.Role) (string, error) {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem, nil
	case conversation.RoleUser:
		return go_openai.ChatMessageRoleUser, nil
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant, nil
	default:
		return "", errors.Errorf("unknown role %q", role)
	}
}

// MakeCompletionRequest builds a non-streaming chat completion request from the
// assembled messages and the tools bound in config.
func MakeCompletionRequest(
	stepSettings *settings.StepSettings,
	messages []conversation.ChatMessage,
	config *engine.Config,
) (*go_openai.ChatCompletionRequest, error) {
	if stepSettings.Client == nil {
		return nil, ErrMissingClientSettings
	}
	chatSettings := stepSettings.Chat
	if chatSettings == nil || chatSettings.Engine == nil || *chatSettings.Engine == "" {
		return nil, errors.New("no engine specified")
	}
	engineName := *chatSettings.Engine

	msgs_ := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for i, m := range messages {
		role, err := roleToOpenAI(m.Role)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		msgs_ = append(msgs_, go_openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	temperature := 0.0
	if chatSettings.Temperature != nil {
		temperature = *chatSettings.Temperature
	}
	topP := 0.0
	if chatSettings.TopP != nil {
		topP = *chatSettings.TopP
	}
	maxTokens := 0
	if chatSettings.MaxResponseTokens != nil {
		maxTokens = *chatSettings.MaxResponseTokens
	}
	maxCompletionTokens := 0

	if isReasoningModel(engineName) {
		maxCompletionTokens = maxTokens
		maxTokens = 0
		temperature = 0
		topP = 0
	}

	log.Debug().
		Str("model", engineName).
		Int("max_tokens", maxTokens).
		Int("max_completion_tokens", maxCompletionTokens).
		Float64("temperature", temperature).
		Float64("top_p", topP).
		Int("message_count", len(msgs_)).
		Msg("Making request to openai")

	req := &go_openai.ChatCompletionRequest{
		Model:               engineName,
		Messages:            msgs_,
		MaxTokens:           maxTokens,
		MaxCompletionTokens: maxCompletionTokens,
		Temperature:         float32(temperature),
		TopP:                float32(topP),
		Stop:                chatSettings.Stop,
	}

	if config != nil && config.HasTools() {
		var openaiTools []go_openai.Tool
		for _, tool := range config.Tools.ListTools() {
			openaiTools = append(openaiTools, go_openai.Tool{
				Type: go_openai.ToolTypeFunction,
				Function: &go_openai.FunctionDefinition{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		req.Tools = openaiTools

		switch config.ToolChoice {
		case engine.ToolChoiceNone:
			req.ToolChoice = "none"
		case engine.ToolChoiceRequired:
			req.ToolChoice = "required"
		default:
			req.ToolChoice = "auto"
		}

		log.Debug().
			Int("openai_tool_count", len(openaiTools)).
			Interface("tool_choice", req.ToolChoice).
			Msg("Tools added to OpenAI request")
	}

	return req, nil
}
