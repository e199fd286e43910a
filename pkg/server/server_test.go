package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/coder/pkg/agents"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/edits"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/fixtures"
	"github.com/go-go-golems/coder/pkg/session"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	err error
}

func (s *stubService) Ask(context.Context, session.AskRequest) (*session.AskResponse, error) {
	return nil, s.err
}

func (s *stubService) Edit(context.Context, session.EditRequest) (*session.EditResponse, error) {
	return nil, s.err
}

func (s *stubService) History(context.Context, string, conversation.Persona) (*session.History, error) {
	return nil, s.err
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func newIntegrationServer(t *testing.T, askSteps, editSteps []fixtures.Step) http.Handler {
	t.Helper()
	st, err := store.Open(context.Background(), store.Settings{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "coder.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	editAgent, err := agents.NewEditAgent(fixtures.NewScriptedEngine(editSteps...))
	require.NoError(t, err)
	svc, err := session.NewService(st, agents.NewAskAgent(fixtures.NewScriptedEngine(askSteps...)), editAgent)
	require.NoError(t, err)
	return NewServer(svc, WithPinger(st)).Handler()
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   session.ErrorKind
	}{
		{"validation", &session.ValidationError{Field: "message", Reason: "must not be empty"}, http.StatusBadRequest, session.KindValidation},
		{"not found", &store.NotFoundError{Kind: "conversation", ID: "x"}, http.StatusNotFound, session.KindNotFound},
		{"upstream", &engine.UpstreamModelError{Provider: "mistral", Model: "m", Err: errors.New("503")}, http.StatusBadGateway, session.KindUpstream},
		{"schema", &edits.SchemaValidationError{Tool: edits.ToolEditFileLines, Problems: []string{"bad"}}, http.StatusBadGateway, session.KindSchema},
		{"persistence", &store.PersistenceError{Op: "commit", Err: errors.New("pq: secret detail")}, http.StatusInternalServerError, session.KindPersistence},
		{"internal", errors.New("boom"), http.StatusInternalServerError, session.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(&stubService{err: tt.err}).Handler()
			rec := do(t, h, http.MethodPost, "/ask", `{"message":"hi"}`)
			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.kind, e.Error)
			assert.NotContains(t, e.Detail, "secret detail")
		})
	}
}

func TestMalformedBodiesAreRejected(t *testing.T) {
	h := NewServer(&stubService{}).Handler()

	for _, body := range []string{``, `{`, `[]`, `{"files": []}`} {
		rec := do(t, h, http.MethodPost, "/edit", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, session.KindValidation, decodeError(t, rec).Error)
	}
}

func TestBodySizeCap(t *testing.T) {
	h := NewServer(&stubService{}, WithMaxBodyBytes(16)).Handler()
	rec := do(t, h, http.MethodPost, "/ask", `{"message":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	h := NewServer(&stubService{}).Handler()

	rec := do(t, h, http.MethodOptions, "/edit", "",
		"Origin", "https://sharecode.example",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type, X-Custom")
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = do(t, h, http.MethodOptions, "/ask", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = do(t, h, http.MethodPost, "/ask", `{"message":""}`, "Origin", "https://sharecode.example")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	h := NewServer(&stubService{}, WithPinger(pingFunc(func(context.Context) error { return nil }))).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h = NewServer(&stubService{}, WithPinger(pingFunc(func(context.Context) error { return errors.New("down") }))).Handler()
	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAskThenResumeOverHTTP(t *testing.T) {
	h := newIntegrationServer(t, []fixtures.Step{{Content: "Hi, I am Coder."}, {Content: "Still Coder."}}, nil)

	rec := do(t, h, http.MethodPost, "/ask", `{"message":"who are you?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first session.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "Hi, I am Coder.", first.Message)

	rec = do(t, h, http.MethodPost, "/ask", `{"message":"really?","conversation_id":"`+first.ConversationID+`","extra":"ignored"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/conversations/"+first.ConversationID+"?persona=ask", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist session.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Messages, 4)
	assert.Equal(t, "really?", hist.Messages[2].Content)

	rec = do(t, h, http.MethodGet, "/conversations/"+first.ConversationID+"?persona=edit", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/conversations/"+first.ConversationID+"?persona=chat", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditOverHTTP(t *testing.T) {
	args := `{"changes":[{"file_name":"x.py","insertions":[{"insert_line":2,"code":"print('hi')"}]}]}`
	h := newIntegrationServer(t, nil, []fixtures.Step{{
		Content:   "I will insert a print call at line 2 of x.py.",
		ToolCalls: []fixtures.ToolCallStep{{ID: "call_9", Name: edits.ToolInsertCodeAtLines, ArgumentsJSON: args}},
	}})

	files := `{"x.py":{"1":"def f():","2":"    pass"}}`
	rec := do(t, h, http.MethodPost, "/edit", `{"prompt":"add a print","files":`+files+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ConversationID string            `json:"conversation_id"`
		Message        string            `json:"message"`
		Files          json.RawMessage   `json:"files"`
		ToolCalls      []json.RawMessage `json:"tool_calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, files, string(resp.Files))
	require.Len(t, resp.ToolCalls, 1)
	assert.JSONEq(t, `{"id":"call_9","name":"insert_code_at_lines","type":"tool_call","args":`+args+`}`, string(resp.ToolCalls[0]))

	rec = do(t, h, http.MethodPost, "/edit", `{"prompt":"again","conversation_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, session.KindNotFound, decodeError(t, rec).Error)
}

func TestHealthReportsPoolStats(t *testing.T) {
	h := newIntegrationServer(t, nil, nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "open_connections")
	assert.Contains(t, body, "in_use_connections")
}
