package builder

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/pkg/errors"
)

// Builder assembles the model-ready message sequence for one request:
// the persona system prompt, the stored history in order, then the new user turn.
type Builder struct {
	persona conversation.Persona
	history []*conversation.Message
	prompt  string
	files   conversation.Files
}

func NewBuilder(persona conversation.Persona) *Builder {
	return &Builder{persona: persona}
}

func (b *Builder) WithHistory(history []*conversation.Message) *Builder {
	b.history = history
	return b
}

func (b *Builder) WithPrompt(prompt string) *Builder {
	b.prompt = prompt
	return b
}

// WithFiles attaches caller-supplied file content. Only the edit persona renders files.
func (b *Builder) WithFiles(files conversation.Files) *Builder {
	b.files = files
	return b
}

// UserTurn returns the text of the new user turn, as it is sent to the model and stored.
func (b *Builder) UserTurn() string {
	if b.persona == conversation.PersonaEdit {
		return EditPrompt(b.prompt, b.files)
	}
	return b.prompt
}

func (b *Builder) Build() ([]conversation.ChatMessage, error) {
	system, err := SystemPrompt(b.persona)
	if err != nil {
		return nil, err
	}

	ret := make([]conversation.ChatMessage, 0, len(b.history)+2)
	ret = append(ret, conversation.NewChatMessage(conversation.RoleSystem, system))
	for _, msg := range b.history {
		role, err := conversation.RoleForSender(string(msg.Sender))
		if err != nil {
			return nil, errors.Wrapf(err, "message %s", msg.ID)
		}
		ret = append(ret, conversation.NewChatMessage(role, msg.Content))
	}
	ret = append(ret, conversation.NewChatMessage(conversation.RoleUser, b.UserTurn()))

	return ret, nil
}

// FormatFiles renders files as "<name>:" followed by "<n>: <line>" lines, ascending by
// line number, files in the given order and separated by a newline.
func FormatFiles(files conversation.Files) string {
	blocks := make([]string, 0, len(files))
	for _, f := range files {
		var sb strings.Builder
		sb.WriteString(f.Name)
		sb.WriteString(":\n")
		lines := f.Lines.SortedLines()
		for i, l := range lines {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("%d: %s", l.Number, l.Text))
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n")
}

// EditPrompt appends the rendered files to the prompt, if there are any.
func EditPrompt(prompt string, files conversation.Files) string {
	if len(files) == 0 {
		return prompt
	}
	block := FormatFiles(files)
	if block == "" {
		return prompt
	}
	return prompt + "\n\nFiles:\n" + block
}
