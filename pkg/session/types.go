package session

import (
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/edits"
)

type AskRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type AskResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type EditRequest struct {
	Prompt         string             `json:"prompt"`
	Files          conversation.Files `json:"files"`
	ConversationID string             `json:"conversation_id,omitempty"`
}

// EditResponse echoes the request files unchanged. ToolCalls is null when the
// model proposed nothing.
type EditResponse struct {
	ConversationID string             `json:"conversation_id"`
	Message        string             `json:"message"`
	Files          conversation.Files `json:"files"`
	ToolCalls      []edits.ToolCall   `json:"tool_calls"`
}

// History is a stored conversation with its messages and their files.
type History struct {
	Conversation *conversation.Conversation `json:"conversation" yaml:"conversation"`
	Messages     []*conversation.Message    `json:"messages" yaml:"messages"`
}
