package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/coder/pkg/agents"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/edits"
	"github.com/go-go-golems/coder/pkg/events"
	"github.com/go-go-golems/coder/pkg/inference/fixtures"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.SessionEvent
}

func (r *recordingPublisher) PublishEvent(_ context.Context, e *events.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		ret = append(ret, e.Type)
	}
	return ret
}

type harness struct {
	store     *store.Store
	ask       *fixtures.ScriptedEngine
	edit      *fixtures.ScriptedEngine
	publisher *recordingPublisher
	service   *Service
}

func newHarness(t *testing.T, askSteps []fixtures.Step, editSteps []fixtures.Step) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), store.Settings{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "coder.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		store:     st,
		ask:       fixtures.NewScriptedEngine(askSteps...),
		edit:      fixtures.NewScriptedEngine(editSteps...),
		publisher: &recordingPublisher{},
	}
	editAgent, err := agents.NewEditAgent(h.edit)
	require.NoError(t, err)
	h.service, err = NewService(st, agents.NewAskAgent(h.ask), editAgent, WithPublisher(h.publisher))
	require.NoError(t, err)
	return h
}

func (h *harness) counts(t *testing.T) (conversations int, messages int) {
	t.Helper()
	sess, err := h.store.Acquire(context.Background())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	convs, err := sess.ListConversations(context.Background(), "", 0)
	require.NoError(t, err)
	for _, c := range convs {
		msgs, err := sess.ListMessages(context.Background(), c.ID)
		require.NoError(t, err)
		messages += len(msgs)
	}
	return len(convs), messages
}

func TestNewServiceChecksAgentPersonas(t *testing.T) {
	st := &store.Store{}
	ask := agents.NewAskAgent(fixtures.NewScriptedEngine())
	edit, err := agents.NewEditAgent(fixtures.NewScriptedEngine())
	require.NoError(t, err)

	_, err = NewService(st, edit, edit)
	require.Error(t, err)
	_, err = NewService(st, ask, ask)
	require.Error(t, err)
	_, err = NewService(nil, ask, edit)
	require.Error(t, err)
}

func TestAskCreatesConversationWithTwoMessages(t *testing.T) {
	h := newHarness(t, []fixtures.Step{{Content: "Hello, I am Coder from ShareCode."}}, nil)

	resp, err := h.service.Ask(context.Background(), AskRequest{Message: "who are you?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Hello, I am Coder from ShareCode.", resp.Message)

	convs, msgs := h.counts(t)
	assert.Equal(t, 1, convs)
	assert.Equal(t, 2, msgs)

	hist, err := h.service.History(context.Background(), resp.ConversationID, conversation.PersonaAsk)
	require.NoError(t, err)
	assert.Equal(t, conversation.PersonaAsk, hist.Conversation.Persona)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, conversation.SenderHuman, hist.Messages[0].Sender)
	assert.Equal(t, "who are you?", hist.Messages[0].Content)
	assert.Equal(t, conversation.SenderAI, hist.Messages[1].Sender)
	assert.Equal(t, resp.Message, hist.Messages[1].Content)

	assert.Equal(t, []events.EventType{events.EventTypeConversationCreated, events.EventTypeTurnPersisted}, h.publisher.types())
}

func TestAskResumesConversationInOrder(t *testing.T) {
	h := newHarness(t, []fixtures.Step{{Content: "first answer"}, {Content: "second answer"}}, nil)
	ctx := context.Background()

	first, err := h.service.Ask(ctx, AskRequest{Message: "first question"})
	require.NoError(t, err)
	second, err := h.service.Ask(ctx, AskRequest{Message: "second question", ConversationID: first.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	calls := h.ask.Calls()
	require.Len(t, calls, 2)
	got := calls[1].Messages
	require.Len(t, got, 4)
	assert.Equal(t, conversation.RoleSystem, got[0].Role)
	assert.Contains(t, got[0].Content, "Coder")
	assert.Equal(t, conversation.NewChatMessage(conversation.RoleUser, "first question"), got[1])
	assert.Equal(t, conversation.NewChatMessage(conversation.RoleAssistant, "first answer"), got[2])
	assert.Equal(t, conversation.NewChatMessage(conversation.RoleUser, "second question"), got[3])

	convs, msgs := h.counts(t)
	assert.Equal(t, 1, convs)
	assert.Equal(t, 4, msgs)
}

func TestPersonaIsolation(t *testing.T) {
	h := newHarness(t, []fixtures.Step{{Content: "ok"}}, []fixtures.Step{{Content: "never"}})
	ctx := context.Background()

	asked, err := h.service.Ask(ctx, AskRequest{Message: "hi"})
	require.NoError(t, err)

	_, err = h.service.Edit(ctx, EditRequest{Prompt: "change it", ConversationID: asked.ConversationID})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Empty(t, h.edit.Calls())

	_, err = h.service.History(ctx, asked.ConversationID, conversation.PersonaEdit)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, msgs := h.counts(t)
	assert.Equal(t, 2, msgs)
}

func TestUnknownConversationPersistsNothing(t *testing.T) {
	h := newHarness(t, nil, []fixtures.Step{{Content: "never"}})

	_, err := h.service.Edit(context.Background(), EditRequest{Prompt: "x", ConversationID: "does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	convs, msgs := h.counts(t)
	assert.Zero(t, convs)
	assert.Zero(t, msgs)
	assert.Equal(t, []events.EventType{events.EventTypeTurnFailed}, h.publisher.types())
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.service.Ask(ctx, AskRequest{Message: "   "})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = h.service.Edit(ctx, EditRequest{Prompt: ""})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = h.service.Edit(ctx, EditRequest{Prompt: "x", Files: conversation.Files{{Name: ""}}})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = h.service.History(ctx, "", conversation.PersonaAsk)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Empty(t, h.ask.Calls())
	assert.Empty(t, h.edit.Calls())
}

func TestUpstreamErrorPersistsNothing(t *testing.T) {
	h := newHarness(t, []fixtures.Step{{Error: "rate limited"}}, nil)

	_, err := h.service.Ask(context.Background(), AskRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))

	convs, msgs := h.counts(t)
	assert.Zero(t, convs)
	assert.Zero(t, msgs)

	h.publisher.mu.Lock()
	defer h.publisher.mu.Unlock()
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, string(KindUpstream), h.publisher.events[0].ErrorKind)
	assert.Empty(t, h.publisher.events[0].ConversationID)
}

func TestUpstreamErrorKeepsExistingHistory(t *testing.T) {
	h := newHarness(t, []fixtures.Step{{Content: "ok"}, {Error: "boom"}}, nil)
	ctx := context.Background()

	first, err := h.service.Ask(ctx, AskRequest{Message: "hi"})
	require.NoError(t, err)
	_, err = h.service.Ask(ctx, AskRequest{Message: "again", ConversationID: first.ConversationID})
	assert.Equal(t, KindUpstream, KindOf(err))

	_, msgs := h.counts(t)
	assert.Equal(t, 2, msgs)
}

func TestSchemaErrorPersistsNothing(t *testing.T) {
	h := newHarness(t, nil, []fixtures.Step{{
		Content: "I will change line 5.",
		ToolCalls: []fixtures.ToolCallStep{
			{ID: "call_1", Name: edits.ToolEditFileLines, ArgumentsJSON: `{"changes":[{"file_name":"a.py","edits":[{"line_start":5,"line_end":2,"new_content":"x"}]}]}`},
		},
	}})

	_, err := h.service.Edit(context.Background(), EditRequest{Prompt: "fix it"})
	require.Error(t, err)
	assert.Equal(t, KindSchema, KindOf(err))

	convs, msgs := h.counts(t)
	assert.Zero(t, convs)
	assert.Zero(t, msgs)
}

func TestEditPassesFilesThroughAndReturnsToolCalls(t *testing.T) {
	const args = `{"changes":[{"file_name":"app.py","edits":[{"line_start":2,"line_end":2,"new_content":"    return total"}]}]}`
	h := newHarness(t, nil, []fixtures.Step{{
		Content:   "I will change line 2 of app.py to 'return total'.",
		ToolCalls: []fixtures.ToolCallStep{{ID: "call_1", Name: edits.ToolEditFileLines, ArgumentsJSON: args}},
	}})

	var req EditRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"prompt": "return total instead",
		"files": {"app.py": {"1": "def f(total):", "2": "    return 0"}, "b.py": {"7": "x = 1"}}
	}`), &req))

	resp, err := h.service.Edit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.Files, resp.Files)

	out, err := json.Marshal(resp.Files)
	require.NoError(t, err)
	assert.JSONEq(t, `{"app.py":{"1":"def f(total):","2":"    return 0"},"b.py":{"7":"x = 1"}}`, string(out))

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, edits.ToolEditFileLines, resp.ToolCalls[0].Name)

	calls := h.edit.Calls()
	require.Len(t, calls, 1)
	userTurn := calls[0].Messages[len(calls[0].Messages)-1]
	assert.Equal(t, conversation.RoleUser, userTurn.Role)
	assert.True(t, strings.HasPrefix(userTurn.Content, "return total instead"))
	assert.Contains(t, userTurn.Content, "app.py:\n1: def f(total):\n2:     return 0")
	assert.Contains(t, userTurn.Content, "b.py:\n7: x = 1")

	hist, err := h.service.History(context.Background(), resp.ConversationID, conversation.PersonaEdit)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, userTurn.Content, hist.Messages[0].Content)
	assert.Empty(t, hist.Messages[0].Files)
	require.Len(t, hist.Messages[1].Files, 2)
	assert.Equal(t, "app.py", hist.Messages[1].Files[0].FileName)
	assert.Equal(t, conversation.LineMap{1: "def f(total):", 2: "    return 0"}, hist.Messages[1].Files[0].Content)

	assert.Equal(t, []events.EventType{
		events.EventTypeConversationCreated,
		events.EventTypeTurnPersisted,
		events.EventTypeEditProposed,
	}, h.publisher.types())
}

func TestEditWithoutToolCallsReturnsNullToolCalls(t *testing.T) {
	h := newHarness(t, nil, []fixtures.Step{{Content: "Nothing to change."}})

	resp, err := h.service.Edit(context.Background(), EditRequest{Prompt: "look at this"})
	require.NoError(t, err)
	assert.Nil(t, resp.ToolCalls)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id":"`+resp.ConversationID+`","message":"Nothing to change.","files":{},"tool_calls":null}`, string(out))
}

func TestConcurrentTurnsOnOneConversationAreSerialized(t *testing.T) {
	const n = 5
	steps := make([]fixtures.Step, n+1)
	for i := range steps {
		steps[i] = fixtures.Step{Content: "answer"}
	}
	h := newHarness(t, steps, nil)
	ctx := context.Background()

	first, err := h.service.Ask(ctx, AskRequest{Message: "start"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Ask(ctx, AskRequest{Message: "more", ConversationID: first.ConversationID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	hist, err := h.service.History(ctx, first.ConversationID, conversation.PersonaAsk)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2*(n+1))
	for i, m := range hist.Messages {
		if i%2 == 0 {
			assert.Equal(t, conversation.SenderHuman, m.Sender, "message %d", i)
		} else {
			assert.Equal(t, conversation.SenderAI, m.Sender, "message %d", i)
		}
	}

	// each call saw every turn persisted before it
	lengths := map[int]bool{}
	for _, c := range h.ask.Calls() {
		lengths[len(c.Messages)] = true
	}
	assert.Len(t, lengths, n+1)
}
