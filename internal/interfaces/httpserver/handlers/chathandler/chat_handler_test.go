package chathandler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain"
	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/chat"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/interfaces/httpserver/middlewares"
)

type scriptedStream struct {
	events []chat.StreamEvent
	pos    int
	err    error
}

func (s *scriptedStream) Recv() (chat.StreamEvent, error) {
	if s.pos >= len(s.events) {
		if s.err != nil {
			return chat.StreamEvent{}, s.err
		}
		return chat.StreamEvent{}, io.EOF
	}
	event := s.events[s.pos]
	s.pos++
	return event, nil
}

func (s *scriptedStream) Close() error { return nil }

type scriptedCompleter struct {
	stream  *scriptedStream
	openErr error
}

func (c *scriptedCompleter) StreamCompletion(_ context.Context, _ chat.CompletionRequest) (chat.CompletionStream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

type staticResolver struct {
	completer chat.Completer
}

func (r staticResolver) Completer(string) (chat.Completer, error) {
	return r.completer, nil
}

// memoryStore is a chat.Persister that keeps conversations in memory.
type memoryStore struct {
	mu     sync.Mutex
	nextID int
	drafts map[string]conversation.Draft
}

func newMemoryStore() *memoryStore {
	return &memoryStore{drafts: make(map[string]conversation.Draft)}
}

func (m *memoryStore) Create(_ context.Context, userID string, draft conversation.Draft) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	publicID := strings.Repeat("c", 20) + string(rune('0'+m.nextID))
	m.drafts[publicID] = draft
	return &conversation.Conversation{PublicID: publicID, UserID: userID, Title: draft.Title}, nil
}

func (m *memoryStore) Update(_ context.Context, publicID, userID string, draft conversation.Draft) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[publicID] = draft
	return &conversation.Conversation{PublicID: publicID, UserID: userID}, nil
}

func testModel() catalog.Model {
	return catalog.Model{
		Provider:    "openai",
		Name:        "gpt-4o",
		DisplayName: "GPT-4o",
		TokenLimit:  128000,
	}
}

func assistantEvents(chunks ...string) []chat.StreamEvent {
	events := make([]chat.StreamEvent, 0, len(chunks)+1)
	var full strings.Builder
	for _, chunk := range chunks {
		events = append(events, chat.StreamEvent{Delta: chunk})
		full.WriteString(chunk)
	}
	events = append(events, chat.StreamEvent{
		Terminal: true,
		Message:  conversation.Message{Role: conversation.RoleAssistant, Content: full.String()},
	})
	return events
}

func newChatRouter(t *testing.T, completer chat.Completer, store chat.Persister) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.New([]catalog.Model{testModel()})
	require.NoError(t, err)

	engine := chat.NewEngine(staticResolver{completer: completer}, store, zerolog.Nop())
	handler := NewHandler(engine, cat, zerolog.Nop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		middlewares.SetPrincipalForTest(c, domain.Principal{ID: "alice", AuthMethod: domain.AuthMethodJWT})
		c.Next()
	})
	router.POST("/api/chat/:provider", handler.ChatCompletion)
	return router
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/openai", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// parseFrames splits an SSE body into its decoded data frames, returning the
// JSON events and whether the [DONE] marker closed the stream.
func parseFrames(t *testing.T, body string) ([]map[string]any, bool) {
	t.Helper()
	var events []map[string]any
	done := false
	for _, line := range strings.Split(body, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		events = append(events, event)
	}
	return events, done
}

func TestChatCompletionStreamsAndPersists(t *testing.T) {
	store := newMemoryStore()
	completer := &scriptedCompleter{stream: &scriptedStream{events: assistantEvents("Hel", "lo!")}}
	router := newChatRouter(t, completer, store)

	rec := postChat(router, `{
		"name": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events, done := parseFrames(t, rec.Body.String())
	require.True(t, done)
	require.Len(t, events, 4)

	assert.Equal(t, "Hel", events[0]["delta"])
	assert.Equal(t, "lo!", events[1]["delta"])
	assert.Equal(t, "assistant", events[2]["role"])
	assert.Equal(t, "Hello!", events[2]["content"])

	conversationID, _ := events[3]["conversation_id"].(string)
	require.NotEmpty(t, conversationID)

	draft, ok := store.drafts[conversationID]
	require.True(t, ok)
	require.Len(t, draft.Messages, 2)
	assert.Equal(t, conversation.RoleUser, draft.Messages[0].Role)
	assert.Equal(t, "hi", draft.Messages[0].Content)
	assert.Equal(t, "Hello!", draft.Messages[1].Content)
}

func TestChatCompletionUpdatesBoundConversation(t *testing.T) {
	store := newMemoryStore()
	store.drafts["existing00000000000001"] = conversation.Draft{}
	completer := &scriptedCompleter{stream: &scriptedStream{events: assistantEvents("sure")}}
	router := newChatRouter(t, completer, store)

	rec := postChat(router, `{
		"id": "existing00000000000001",
		"name": "gpt-4o",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "Hello!"},
			{"role": "user", "content": "more please"}
		]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	events, done := parseFrames(t, rec.Body.String())
	require.True(t, done)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, "existing00000000000001", last["conversation_id"])

	draft := store.drafts["existing00000000000001"]
	require.Len(t, draft.Messages, 4)
	assert.Equal(t, "sure", draft.Messages[3].Content)
}

func TestChatCompletionUnknownModelIs404(t *testing.T) {
	router := newChatRouter(t, &scriptedCompleter{}, newMemoryStore())

	rec := postChat(router, `{
		"name": "gpt-99",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not available")
}

func TestChatCompletionRejectsTrailingAssistant(t *testing.T) {
	router := newChatRouter(t, &scriptedCompleter{}, newMemoryStore())

	rec := postChat(router, `{
		"name": "gpt-4o",
		"messages": [{"role": "assistant", "content": "hi"}]
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletionProviderFailureBeforeOutput(t *testing.T) {
	completer := &scriptedCompleter{openErr: io.ErrUnexpectedEOF}
	router := newChatRouter(t, completer, newMemoryStore())

	rec := postChat(router, `{
		"name": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	// Nothing streamed, so the failure surfaces as a plain error response.
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "data:")
}

func TestChatCompletionMidStreamFailure(t *testing.T) {
	stream := &scriptedStream{
		events: []chat.StreamEvent{{Delta: "Hel"}},
		err:    io.ErrUnexpectedEOF,
	}
	router := newChatRouter(t, &scriptedCompleter{stream: stream}, newMemoryStore())

	rec := postChat(router, `{
		"name": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	events, done := parseFrames(t, rec.Body.String())
	require.True(t, done)
	require.Len(t, events, 2)
	assert.Equal(t, "Hel", events[0]["delta"])
	assert.NotEmpty(t, events[1]["error"])
}
