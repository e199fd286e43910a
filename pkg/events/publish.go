package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

const (
	MetadataSequenceNumber = "sequence_number"
	MetadataCorrelationID  = "correlation_id"
	MetadataEventType      = "event_type"
)

// Publisher is what the session layer publishes its events through.
type Publisher interface {
	PublishEvent(ctx context.Context, e *SessionEvent)
}

type correlationIDKeyType string

const correlationIDKey correlationIDKeyType = "correlation_id"

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// PublisherManager is used to distribute messages to a set of Publishers.
// As such, you "subscribe" a publisher to the given topic.
// When you Publish a message, it will get distributed to all publishers
// on the channel they were subscribed with.
//
// The Manager also keeps a sequence number for each outgoing message,
// in the order they are handled by Publish.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, sub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], sub)
}

// Publish serializes payload to JSON and distributes it to all subscribed
// publishers. The correlation id of ctx, if any, is copied into the metadata.
func (s *PublisherManager) Publish(ctx context.Context, payload interface{}) error {
	// lock for the sequence number
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for topic, subs := range s.Publishers {
		for _, sub := range subs {
			msg := message.NewMessage(watermill.NewUUID(), b)
			msg.Metadata.Set(MetadataSequenceNumber, fmt.Sprintf("%d", s.sequenceNumber))
			if cid := CorrelationIDFromContext(ctx); cid != "" {
				msg.Metadata.Set(MetadataCorrelationID, cid)
			}
			if e, ok := payload.(*SessionEvent); ok {
				msg.Metadata.Set(MetadataEventType, string(e.Type))
			}
			if err := sub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish")
			}
		}
	}
	s.sequenceNumber++

	return nil
}

// PublishEvent publishes e and only logs failures; event delivery never fails a request.
func (s *PublisherManager) PublishEvent(ctx context.Context, e *SessionEvent) {
	if err := s.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish")
	}
}

var _ Publisher = (*PublisherManager)(nil)

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, *SessionEvent) {}
