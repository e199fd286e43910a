package builder

import (
	"testing"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(senders ...conversation.Sender) []*conversation.Message {
	ret := make([]*conversation.Message, 0, len(senders))
	for i, s := range senders {
		ret = append(ret, &conversation.Message{
			ID:      string(rune('a' + i)),
			Sender:  s,
			Content: string(s) + "-" + string(rune('0'+i)),
		})
	}
	return ret
}

func TestBuildPreservesHistoryOrderAndRoles(t *testing.T) {
	h := history(conversation.SenderHuman, conversation.SenderAI, conversation.SenderHuman, conversation.SenderAI)
	msgs, err := NewBuilder(conversation.PersonaAsk).WithHistory(h).WithPrompt("next").Build()
	require.NoError(t, err)

	require.Len(t, msgs, 6)
	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	for i, m := range h {
		assert.Equal(t, m.Content, msgs[i+1].Content)
	}
	assert.Equal(t, conversation.RoleUser, msgs[1].Role)
	assert.Equal(t, conversation.RoleAssistant, msgs[2].Role)
	assert.Equal(t, conversation.RoleUser, msgs[3].Role)
	assert.Equal(t, conversation.RoleAssistant, msgs[4].Role)
	assert.Equal(t, conversation.NewChatMessage(conversation.RoleUser, "next"), msgs[5])
}

func TestBuildRejectsUnknownSender(t *testing.T) {
	h := []*conversation.Message{{ID: "m1", Sender: "bot", Content: "?"}}
	_, err := NewBuilder(conversation.PersonaAsk).WithHistory(h).WithPrompt("x").Build()
	require.Error(t, err)
}

func TestPersonasUseDifferentSystemPrompts(t *testing.T) {
	ask, err := SystemPrompt(conversation.PersonaAsk)
	require.NoError(t, err)
	edit, err := SystemPrompt(conversation.PersonaEdit)
	require.NoError(t, err)

	assert.NotEqual(t, ask, edit)
	assert.Contains(t, ask, "Coder")
	assert.Contains(t, edit, "ShareCode")
	assert.Contains(t, edit, "edit_file_lines")
	assert.Contains(t, edit, "insert_code_at_lines")
	assert.NotContains(t, ask, "edit_file_lines")

	_, err = SystemPrompt("review")
	require.Error(t, err)
}

func TestEditPromptRendersFilesDeterministically(t *testing.T) {
	files := conversation.Files{
		{Name: "b.py", Lines: conversation.LineMap{2: "    return 1", 1: "def foo():"}},
		{Name: "a.py", Lines: conversation.LineMap{10: "x = 1"}},
	}
	got := EditPrompt("rename foo to bar", files)
	want := "rename foo to bar\n\nFiles:\n" +
		"b.py:\n1: def foo():\n2:     return 1\n" +
		"a.py:\n10: x = 1"
	assert.Equal(t, want, got)
}

func TestEditPromptWithoutFiles(t *testing.T) {
	assert.Equal(t, "hello", EditPrompt("hello", nil))
}

func TestEditBuilderUsesFileBlockInUserTurn(t *testing.T) {
	files := conversation.Files{{Name: "x.py", Lines: conversation.LineMap{1: "def foo():"}}}
	b := NewBuilder(conversation.PersonaEdit).WithPrompt("rename").WithFiles(files)
	msgs, err := b.Build()
	require.NoError(t, err)

	last := msgs[len(msgs)-1]
	assert.Equal(t, conversation.RoleUser, last.Role)
	assert.Equal(t, "rename\n\nFiles:\nx.py:\n1: def foo():", last.Content)
	assert.Equal(t, last.Content, b.UserTurn())
}

func TestAskBuilderIgnoresFiles(t *testing.T) {
	files := conversation.Files{{Name: "x.py", Lines: conversation.LineMap{1: "def foo():"}}}
	b := NewBuilder(conversation.PersonaAsk).WithPrompt("hi").WithFiles(files)
	assert.Equal(t, "hi", b.UserTurn())
}
