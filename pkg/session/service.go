// Package session implements the ask and edit request flows:
//
//	resolve conversation -> assemble history -> invoke agent -> persist turn -> respond
//
// A request that names no conversation gets a new one, but the row is only
// written together with the first turn. Nothing is persisted when the model
// call fails or proposes an invalid edit.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/coder/pkg/agents"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/conversation/builder"
	"github.com/go-go-golems/coder/pkg/events"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Acquirer hands out request-scoped store sessions.
type Acquirer interface {
	Acquire(ctx context.Context) (*store.Session, error)
}

type Service struct {
	store     Acquirer
	ask       agents.Agent
	edit      agents.Agent
	publisher events.Publisher
	locks     *KeyedMutex
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLocks(l *KeyedMutex) Option {
	return func(s *Service) {
		if l != nil {
			s.locks = l
		}
	}
}

func NewService(st Acquirer, ask agents.Agent, edit agents.Agent, options ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("session: store is nil")
	}
	if ask == nil || ask.Persona() != conversation.PersonaAsk {
		return nil, errors.New("session: ask agent missing or bound to the wrong persona")
	}
	if edit == nil || edit.Persona() != conversation.PersonaEdit {
		return nil, errors.New("session: edit agent missing or bound to the wrong persona")
	}
	s := &Service{
		store:     st,
		ask:       ask,
		edit:      edit,
		publisher: events.NopPublisher{},
		locks:     NewKeyedMutex(),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// turnInput is the persona-independent part of a request.
type turnInput struct {
	persona        conversation.Persona
	agent          agents.Agent
	conversationID string
	prompt         string
	files          conversation.Files
}

type turnResult struct {
	conversation *conversation.Conversation
	reply        *agents.Reply
	human        *conversation.Message
	ai           *conversation.Message
}

func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, s.fail(ctx, conversation.PersonaAsk, req.ConversationID,
			&ValidationError{Field: "message", Reason: "must not be empty"})
	}

	res, err := s.runTurn(ctx, turnInput{
		persona:        conversation.PersonaAsk,
		agent:          s.ask,
		conversationID: req.ConversationID,
		prompt:         req.Message,
	})
	if err != nil {
		return nil, err
	}
	return &AskResponse{
		ConversationID: res.conversation.ID,
		Message:        res.reply.Content,
	}, nil
}

func (s *Service) Edit(ctx context.Context, req EditRequest) (*EditResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, s.fail(ctx, conversation.PersonaEdit, req.ConversationID,
			&ValidationError{Field: "prompt", Reason: "must not be empty"})
	}
	if err := req.Files.Validate(); err != nil {
		return nil, s.fail(ctx, conversation.PersonaEdit, req.ConversationID,
			&ValidationError{Field: "files", Reason: err.Error()})
	}

	res, err := s.runTurn(ctx, turnInput{
		persona:        conversation.PersonaEdit,
		agent:          s.edit,
		conversationID: req.ConversationID,
		prompt:         req.Prompt,
		files:          req.Files,
	})
	if err != nil {
		return nil, err
	}

	files := req.Files.Clone()
	if files == nil {
		files = conversation.Files{}
	}
	return &EditResponse{
		ConversationID: res.conversation.ID,
		Message:        res.reply.Content,
		Files:          files,
		ToolCalls:      res.reply.ToolCalls,
	}, nil
}

func (s *Service) runTurn(ctx context.Context, in turnInput) (*turnResult, error) {
	start := time.Now()
	logger := log.With().Str("persona", string(in.persona)).Logger()

	if in.conversationID != "" {
		unlock, err := s.locks.Lock(ctx, in.conversationID)
		if err != nil {
			return nil, s.fail(ctx, in.persona, in.conversationID, errors.Wrap(err, "wait for conversation"))
		}
		defer unlock()
	}

	sess, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, s.fail(ctx, in.persona, in.conversationID, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("session: failed to release store connection")
		}
	}()

	// RESOLVE_CONVERSATION
	var (
		conv    *conversation.Conversation
		created bool
		history []*conversation.Message
	)
	if in.conversationID != "" {
		conv, err = sess.GetConversation(ctx, in.conversationID, in.persona)
		if err != nil {
			return nil, s.fail(ctx, in.persona, in.conversationID, err)
		}
		// ASSEMBLE_HISTORY
		history, err = sess.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, s.fail(ctx, in.persona, conv.ID, err)
		}
	} else {
		conv = store.NewConversation(in.persona)
		created = true
	}
	logger = logger.With().Str("conversation_id", conv.ID).Bool("new_conversation", created).Logger()

	b := builder.NewBuilder(in.persona).
		WithHistory(history).
		WithPrompt(in.prompt).
		WithFiles(in.files)
	msgs, err := b.Build()
	if err != nil {
		return nil, s.fail(ctx, in.persona, conv.ID, err)
	}
	logger.Debug().Int("history_length", len(history)).Int("message_count", len(msgs)).Msg("session: assembled conversation")

	// INVOKE_AGENT, EXTRACT_TOOL_CALLS
	reply, err := in.agent.Invoke(ctx, msgs)
	if err != nil {
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("session: agent invocation failed")
		return nil, s.fail(ctx, in.persona, s.persistedID(conv, created), err)
	}

	// PERSIST_TURN
	res := &turnResult{conversation: conv, reply: reply}
	err = sess.InTx(ctx, func(tx *store.Tx) error {
		if created {
			if err := tx.InsertConversation(ctx, conv); err != nil {
				return err
			}
		}
		human, err := tx.AppendMessage(ctx, conv.ID, conversation.SenderHuman, b.UserTurn(), in.persona)
		if err != nil {
			return err
		}
		ai, err := tx.AppendMessage(ctx, conv.ID, conversation.SenderAI, reply.Content, in.persona)
		if err != nil {
			return err
		}
		if len(in.files) > 0 {
			if _, err := tx.AttachFiles(ctx, ai.ID, in.files); err != nil {
				return err
			}
		}
		res.human, res.ai = human, ai
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("session: failed to persist turn")
		return nil, s.fail(ctx, in.persona, s.persistedID(conv, created), err)
	}

	if created {
		s.publisher.PublishEvent(ctx, events.NewEvent(events.EventTypeConversationCreated, in.persona, conv.ID))
	}
	persisted := events.NewEvent(events.EventTypeTurnPersisted, in.persona, conv.ID)
	persisted.MessageIDs = []string{res.human.ID, res.ai.ID}
	persisted.FileCount = len(in.files)
	s.publisher.PublishEvent(ctx, persisted)
	if len(reply.ToolCalls) > 0 {
		proposed := events.NewEvent(events.EventTypeEditProposed, in.persona, conv.ID)
		proposed.MessageIDs = []string{res.ai.ID}
		proposed.ToolCallCount = len(reply.ToolCalls)
		s.publisher.PublishEvent(ctx, proposed)
	}

	logger.Info().
		Int("tool_call_count", len(reply.ToolCalls)).
		Int("file_count", len(in.files)).
		Dur("duration", time.Since(start)).
		Msg("session: turn persisted")
	return res, nil
}

// persistedID returns the conversation id only if it exists in the store.
func (s *Service) persistedID(conv *conversation.Conversation, created bool) string {
	if created {
		return ""
	}
	return conv.ID
}

func (s *Service) fail(ctx context.Context, persona conversation.Persona, conversationID string, err error) error {
	e := events.NewEvent(events.EventTypeTurnFailed, persona, conversationID)
	e.Error = err.Error()
	e.ErrorKind = string(KindOf(err))
	s.publisher.PublishEvent(ctx, e)
	return err
}

// History returns a stored conversation of persona with all messages and files.
func (s *Service) History(ctx context.Context, conversationID string, persona conversation.Persona) (*History, error) {
	if conversationID == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "must not be empty"}
	}
	sess, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	conv, err := sess.GetConversation(ctx, conversationID, persona)
	if err != nil {
		return nil, err
	}
	msgs, err := sess.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.LoadFiles(ctx, msgs); err != nil {
		return nil, err
	}
	return &History{Conversation: conv, Messages: msgs}, nil
}

