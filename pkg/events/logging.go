package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Most of this code inspired if not copied from https://github.com/ThreeDotsLabs/go-event-driven

type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(map[string]interface{}(fields)).Err(err).Msg(msg)
}

func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	// map INFO to DEBUG because watermill is chatty
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.logger.With().Fields(map[string]interface{}(fields)).Logger()
	return &WatermillZerologAdapter{logger: l}
}

func NewWatermill(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{logger: logger}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

// LogEventsHandler logs every session event it receives. Malformed payloads are
// logged and acked so one bad message does not stall the router.
func LogEventsHandler(msg *message.Message) error {
	e, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("events: dropping malformed session event")
		return nil
	}

	var ev *zerolog.Event
	if e.Type == EventTypeTurnFailed {
		ev = log.Warn().Str("error", e.Error).Str("error_kind", e.ErrorKind)
	} else {
		ev = log.Info()
	}
	ev.
		Str("event_type", string(e.Type)).
		Str("persona", string(e.Persona)).
		Str("conversation_id", e.ConversationID).
		Strs("message_ids", e.MessageIDs).
		Int("tool_call_count", e.ToolCallCount).
		Int("file_count", e.FileCount).
		Str("correlation_id", msg.Metadata.Get(MetadataCorrelationID)).
		Str("sequence_number", msg.Metadata.Get(MetadataSequenceNumber)).
		Msg("session event")
	return nil
}
