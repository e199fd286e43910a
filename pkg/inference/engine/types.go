package engine

import (
	"fmt"

	"github.com/go-go-golems/coder/pkg/inference/tools"
)

// ToolChoice defines how the model should choose tools
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"     // Let the model decide
	ToolChoiceNone     ToolChoice = "none"     // Never call tools
	ToolChoiceRequired ToolChoice = "required" // Must call at least one tool
)

// Usage reports token counts when the provider returns them.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// Response is the normalized result of one inference call.
type Response struct {
	Content    string           `json:"content"`
	ToolCalls  []tools.ToolCall `json:"tool_calls,omitempty"`
	Usage      *Usage           `json:"usage,omitempty"`
	StopReason string           `json:"stop_reason,omitempty"`
	Model      string           `json:"model,omitempty"`
}

// Config holds the per-call settings assembled from Options.
type Config struct {
	Tools      tools.ToolRegistry
	ToolChoice ToolChoice
}

type Option func(*Config) error

func NewConfig() *Config {
	return &Config{
		ToolChoice: ToolChoiceAuto,
	}
}

func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(config); err != nil {
			return err
		}
	}
	return nil
}

// WithTools binds every tool of the registry to the call.
func WithTools(registry tools.ToolRegistry) Option {
	return func(c *Config) error {
		c.Tools = registry
		return nil
	}
}

func WithToolChoice(choice ToolChoice) Option {
	return func(c *Config) error {
		switch choice {
		case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
			c.ToolChoice = choice
			return nil
		default:
			return fmt.Errorf("unknown tool choice %q", choice)
		}
	}
}

// HasTools reports whether at least one tool is bound.
func (c *Config) HasTools() bool {
	if c.Tools == nil {
		return false
	}
	return len(c.Tools.ListTools()) > 0
}
