package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Persona is the behavioral mode a conversation is bound to at creation.
type Persona string

const (
	PersonaAsk  Persona = "ask"
	PersonaEdit Persona = "edit"
)

func ParsePersona(s string) (Persona, error) {
	switch Persona(strings.ToLower(strings.TrimSpace(s))) {
	case PersonaAsk:
		return PersonaAsk, nil
	case PersonaEdit:
		return PersonaEdit, nil
	default:
		return "", errors.Errorf("unknown persona %q", s)
	}
}

func (p Persona) String() string {
	return string(p)
}

// Sender is the stored author tag of a message.
type Sender string

const (
	SenderHuman Sender = "human"
	SenderAI    Sender = "ai"
)

// Role is the model-facing role of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RoleForSender maps a stored sender string to a model role.
// Unknown strings are rejected instead of defaulting to the assistant role.
func RoleForSender(sender string) (Role, error) {
	switch Sender(sender) {
	case SenderHuman:
		return RoleUser, nil
	case SenderAI:
		return RoleAssistant, nil
	default:
		return "", errors.Errorf("unknown message sender %q", sender)
	}
}

// Conversation is a persisted dialogue bound to a single persona.
type Conversation struct {
	ID        string    `db:"id" json:"id" yaml:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at" yaml:"created_at"`
	Persona   Persona   `db:"agent_type" json:"persona" yaml:"persona"`
}

// Message is one immutable turn of a conversation.
type Message struct {
	ID             string    `db:"id" json:"id" yaml:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id" yaml:"conversation_id"`
	Sender         Sender    `db:"sender" json:"sender" yaml:"sender"`
	Content        string    `db:"content" json:"content" yaml:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at" yaml:"created_at"`
	Persona        Persona   `db:"message_type" json:"persona" yaml:"persona"`

	Files []*FileSnapshot `db:"-" json:"files,omitempty" yaml:"files,omitempty"`
}

// FileSnapshot is the state of one file attached to a message.
type FileSnapshot struct {
	ID        string  `json:"id" yaml:"id"`
	MessageID string  `json:"message_id" yaml:"message_id"`
	FileName  string  `json:"file_name" yaml:"file_name"`
	Content   LineMap `json:"file_content" yaml:"file_content"`
}

// ChatMessage is a model-ready message.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

func (c ChatMessage) String() string {
	return fmt.Sprintf("[%s]: %s", c.Role, strings.TrimRight(c.Content, "\n"))
}
