package store

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Tx is the write surface of a Session transaction.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) GetConversation(ctx context.Context, id string, persona conversation.Persona) (*conversation.Conversation, error) {
	return getConversation(ctx, t.tx, id, persona)
}

// CreateConversation inserts a new conversation for persona.
func (t *Tx) CreateConversation(ctx context.Context, persona conversation.Persona) (*conversation.Conversation, error) {
	c := NewConversation(persona)
	if err := t.InsertConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// InsertConversation persists a record built by NewConversation.
func (t *Tx) InsertConversation(ctx context.Context, c *conversation.Conversation) error {
	if _, err := conversation.ParsePersona(string(c.Persona)); err != nil {
		return persistenceError("insert conversation", err)
	}
	_, err := t.tx.ExecContext(ctx,
		t.tx.Rebind(`INSERT INTO conversations (id, created_at, agent_type) VALUES (?, ?, ?)`),
		c.ID, c.CreatedAt, string(c.Persona))
	return persistenceError("insert conversation", err)
}

// AppendMessage adds a message to a conversation. The persona must match the
// conversation's persona.
func (t *Tx) AppendMessage(
	ctx context.Context,
	conversationID string,
	sender conversation.Sender,
	content string,
	persona conversation.Persona,
) (*conversation.Message, error) {
	if _, err := conversation.RoleForSender(string(sender)); err != nil {
		return nil, persistenceError("append message", err)
	}
	if _, err := t.GetConversation(ctx, conversationID, persona); err != nil {
		return nil, err
	}

	ts := now()
	m := &conversation.Message{
		ID:             newOrderedID(ts),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      ts,
		Persona:        persona,
	}
	_, err := t.tx.ExecContext(ctx,
		t.tx.Rebind(`INSERT INTO messages (id, conversation_id, sender, content, created_at, message_type)
			VALUES (?, ?, ?, ?, ?, ?)`),
		m.ID, m.ConversationID, string(m.Sender), m.Content, m.CreatedAt, string(m.Persona))
	if err != nil {
		return nil, persistenceError("append message", err)
	}
	return m, nil
}

// AttachFiles stores one snapshot per file, in the given order.
func (t *Tx) AttachFiles(ctx context.Context, messageID string, files conversation.Files) ([]*conversation.FileSnapshot, error) {
	if err := files.Validate(); err != nil {
		return nil, persistenceError("attach files", err)
	}
	ret := make([]*conversation.FileSnapshot, 0, len(files))
	for _, f := range files {
		lines := f.Lines
		if lines == nil {
			lines = conversation.LineMap{}
		}
		content, err := json.Marshal(lines)
		if err != nil {
			return nil, persistenceError("attach files", errors.Wrapf(err, "encode %s", f.Name))
		}
		fs := &conversation.FileSnapshot{
			ID:        newOrderedID(now()),
			MessageID: messageID,
			FileName:  f.Name,
			Content:   lines,
		}
		_, err = t.tx.ExecContext(ctx,
			t.tx.Rebind(`INSERT INTO files (id, message_id, file_name, file_content) VALUES (?, ?, ?, ?)`),
			fs.ID, fs.MessageID, fs.FileName, string(content))
		if err != nil {
			return nil, persistenceError("attach files", err)
		}
		ret = append(ret, fs)
	}
	return ret, nil
}
