package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is a request-scoped handle owning one connection.
type Session struct {
	conn      *sqlx.Conn
	closeOnce sync.Once
	closeErr  error
}

// Close returns the connection to the pool. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

type fileRow struct {
	ID          string `db:"id"`
	MessageID   string `db:"message_id"`
	FileName    string `db:"file_name"`
	FileContent string `db:"file_content"`
}

func (r fileRow) snapshot() (*conversation.FileSnapshot, error) {
	var lines conversation.LineMap
	if err := json.Unmarshal([]byte(r.FileContent), &lines); err != nil {
		return nil, errors.Wrapf(err, "decode content of file %s", r.ID)
	}
	if lines == nil {
		lines = conversation.LineMap{}
	}
	return &conversation.FileSnapshot{
		ID:        r.ID,
		MessageID: r.MessageID,
		FileName:  r.FileName,
		Content:   lines,
	}, nil
}

// queryer is the read surface shared by *sqlx.Conn and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func getConversation(ctx context.Context, q queryer, id string, persona conversation.Persona) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := q.GetContext(ctx, &c,
		q.Rebind(`SELECT id, created_at, agent_type FROM conversations WHERE id = ? AND agent_type = ?`),
		id, string(persona))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "conversation", ID: id, Persona: persona}
	}
	if err != nil {
		return nil, persistenceError("get conversation", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// GetConversation returns the conversation with the given id and persona. A
// conversation of another persona is reported as not found.
func (s *Session) GetConversation(ctx context.Context, id string, persona conversation.Persona) (*conversation.Conversation, error) {
	return getConversation(ctx, s.conn, id, persona)
}

// ListMessages returns the messages of a conversation ascending by created_at,
// ties broken by insertion order. Attached files are not loaded.
func (s *Session) ListMessages(ctx context.Context, conversationID string) ([]*conversation.Message, error) {
	msgs := []*conversation.Message{}
	err := s.conn.SelectContext(ctx, &msgs,
		s.conn.Rebind(`SELECT id, conversation_id, sender, content, created_at, message_type
			FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`),
		conversationID)
	if err != nil {
		return nil, persistenceError("list messages", err)
	}
	for _, m := range msgs {
		m.CreatedAt = m.CreatedAt.UTC()
	}
	log.Debug().Str("conversation_id", conversationID).Int("message_count", len(msgs)).Msg("store: listed messages")
	return msgs, nil
}

// ListFiles returns the snapshots attached to a message in insertion order.
func (s *Session) ListFiles(ctx context.Context, messageID string) ([]*conversation.FileSnapshot, error) {
	rows := []fileRow{}
	err := s.conn.SelectContext(ctx, &rows,
		s.conn.Rebind(`SELECT id, message_id, file_name, file_content FROM files WHERE message_id = ? ORDER BY id ASC`),
		messageID)
	if err != nil {
		return nil, persistenceError("list files", err)
	}
	ret := make([]*conversation.FileSnapshot, 0, len(rows))
	for _, r := range rows {
		fs, err := r.snapshot()
		if err != nil {
			return nil, persistenceError("list files", err)
		}
		ret = append(ret, fs)
	}
	return ret, nil
}

// LoadFiles fills Files on each message.
func (s *Session) LoadFiles(ctx context.Context, msgs []*conversation.Message) error {
	for _, m := range msgs {
		files, err := s.ListFiles(ctx, m.ID)
		if err != nil {
			return err
		}
		if len(files) > 0 {
			m.Files = files
		}
	}
	return nil
}

// ListConversations returns the most recent conversations first. An empty
// persona lists both personas; a limit <= 0 means no limit.
func (s *Session) ListConversations(ctx context.Context, persona conversation.Persona, limit int) ([]*conversation.Conversation, error) {
	query := `SELECT id, created_at, agent_type FROM conversations`
	var args []interface{}
	if persona != "" {
		query += ` WHERE agent_type = ?`
		args = append(args, string(persona))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	convs := []*conversation.Conversation{}
	if err := s.conn.SelectContext(ctx, &convs, s.conn.Rebind(query), args...); err != nil {
		return nil, persistenceError("list conversations", err)
	}
	for _, c := range convs {
		c.CreatedAt = c.CreatedAt.UTC()
	}
	return convs, nil
}

// InTx runs fn in a transaction on the session connection. The transaction
// commits if fn returns nil and rolls back otherwise.
func (s *Session) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError("begin transaction", err)
	}
	tx := &Tx{tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("store: rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return persistenceError("commit transaction", err)
	}
	return nil
}
