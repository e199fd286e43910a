package middleware

import (
	"context"
	"time"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/tools"
	"github.com/rs/zerolog"
)

// NewLoggingMiddleware logs the shape of each inference call and its outcome.
// Message contents are only logged at trace level.
func NewLoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, messages []conversation.ChatMessage, options ...engine.Option) (*engine.Response, error) {
			lg := logger
			toolCount := 0
			cfg := engine.NewConfig()
			if err := engine.ApplyOptions(cfg, options...); err == nil && cfg.HasTools() {
				toolCount = len(cfg.Tools.ListTools())
			}

			lg = lg.With().
				Int("message_count", len(messages)).
				Int("tool_count", toolCount).
				Logger()

			for i, m := range messages {
				lg.Trace().Int("index", i).Str("message", m.String()).Msg("inference: message")
			}
			lg.Debug().Msg("inference: starting")

			start := time.Now()
			resp, err := next(ctx, messages, options...)
			if err != nil {
				lg.Warn().Err(err).Dur("duration", time.Since(start)).Msg("inference: failed")
				return resp, err
			}

			ev := lg.Info().
				Dur("duration", time.Since(start)).
				Str("model", resp.Model).
				Str("stop_reason", resp.StopReason).
				Int("response_tool_calls", len(resp.ToolCalls)).
				Strs("tool_names", toolNames(resp.ToolCalls))
			if resp.Usage != nil {
				ev = ev.Int("input_tokens", resp.Usage.InputTokens).Int("output_tokens", resp.Usage.OutputTokens)
			}
			ev.Msg("inference: completed")
			return resp, nil
		}
	}
}

func toolNames(calls []tools.ToolCall) []string {
	ret := make([]string, 0, len(calls))
	for _, c := range calls {
		ret = append(ret, c.Name)
	}
	return ret
}
