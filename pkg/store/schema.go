package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// the two dialects differ only in the timestamp column type
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	created_at  %[1]s NOT NULL,
	agent_type  TEXT NOT NULL CHECK (agent_type IN ('ask', 'edit'))
);
CREATE INDEX IF NOT EXISTS idx_conversations_agent_type ON conversations(agent_type, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	conversation_id  TEXT NOT NULL REFERENCES conversations(id),
	sender           TEXT NOT NULL CHECK (sender IN ('human', 'ai')),
	content          TEXT NOT NULL,
	created_at       %[1]s NOT NULL,
	message_type     TEXT NOT NULL CHECK (message_type IN ('ask', 'edit'))
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, id);

CREATE TABLE IF NOT EXISTS files (
	id            TEXT PRIMARY KEY,
	message_id    TEXT NOT NULL REFERENCES messages(id),
	file_name     TEXT NOT NULL,
	file_content  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_message ON files(message_id);
`

func timestampType(driver string) string {
	if driver == DriverPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// Migrate creates the tables and indexes if they do not exist. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(schemaTemplate, timestampType(s.driver))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return persistenceError("migrate", err)
	}
	log.Debug().Str("driver", s.driver).Msg("store: schema is up to date")
	return nil
}
