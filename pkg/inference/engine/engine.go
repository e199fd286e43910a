package engine

import (
	"context"

	"github.com/go-go-golems/coder/pkg/conversation"
)

// Engine represents an AI inference engine that sends a prepared message
// sequence to a provider and returns the single response it produced.
// Engines handle provider-specific logic; callers only see Response.
type Engine interface {
	// RunInference performs exactly one provider call. There is no retry and no
	// streaming. Any provider failure is returned as an *UpstreamModelError.
	RunInference(ctx context.Context, messages []conversation.ChatMessage, options ...Option) (*Response, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, messages []conversation.ChatMessage, options ...Option) (*Response, error)

func (f EngineFunc) RunInference(ctx context.Context, messages []conversation.ChatMessage, options ...Option) (*Response, error) {
	return f(ctx, messages, options...)
}
