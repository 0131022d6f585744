package conversationhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/domain/query"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/utils/platformerrors"
)

type memoryRepository struct {
	nextID uint
	rows   map[string]*conversation.Conversation
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: make(map[string]*conversation.Conversation)}
}

func (m *memoryRepository) Create(_ context.Context, conv *conversation.Conversation) error {
	m.nextID++
	conv.ID = m.nextID
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	copied := *conv
	m.rows[conv.PublicID] = &copied
	return nil
}

func (m *memoryRepository) FindOne(ctx context.Context, filter conversation.Filter) (*conversation.Conversation, error) {
	for _, conv := range m.rows {
		if filter.PublicID != nil && conv.PublicID != *filter.PublicID {
			continue
		}
		if filter.UserID != nil && conv.UserID != *filter.UserID {
			continue
		}
		copied := *conv
		return &copied, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "")
}

func (m *memoryRepository) FindByFilter(_ context.Context, filter conversation.Filter, _ query.Pagination) ([]*conversation.Conversation, error) {
	var out []*conversation.Conversation
	for _, conv := range m.rows {
		if filter.UserID != nil && conv.UserID != *filter.UserID {
			continue
		}
		copied := *conv
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryRepository) Count(_ context.Context, filter conversation.Filter) (int64, error) {
	var n int64
	for _, conv := range m.rows {
		if filter.UserID != nil && conv.UserID != *filter.UserID {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memoryRepository) SavePayload(ctx context.Context, conversationID uint, payload *conversation.ChatPayload) error {
	for _, conv := range m.rows {
		if conv.ID == conversationID {
			conv.Payload = payload
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "")
}

func (m *memoryRepository) Delete(_ context.Context, conversationID uint) error {
	for id, conv := range m.rows {
		if conv.ID == conversationID {
			delete(m.rows, id)
			return nil
		}
	}
	return nil
}

func newTestRouter(repo conversation.Repository, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := conversation.NewService(repo, conversation.NewListingCache(), zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			middlewares.SetPrincipalForTest(c, domain.Principal{ID: userID, AuthMethod: domain.AuthMethodJWT})
		}
		c.Next()
	})

	api := router.Group("/api")
	api.GET("/conversation", handler.List)
	api.POST("/conversation", handler.Create)
	api.GET("/conversation/:id", handler.Get)
	api.POST("/conversation/:id", handler.Update)
	api.DELETE("/conversation/:id", handler.Delete)
	return router
}

func createBody() string {
	return `{
		"provider": "openai",
		"name": "gpt-4o",
		"params": [{"name": "temperature", "type": "range", "value": 0.7}],
		"messages": [
			{"role": "user", "content": "hello there"},
			{"role": "assistant", "content": "hi"}
		]
	}`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetConversation(t *testing.T) {
	repo := newMemoryRepository()
	router := newTestRouter(repo, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "hello there", created["title"])

	rec = doJSON(t, router, http.MethodGet, "/api/conversation/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, id, fetched["id"])
	assert.Equal(t, "gpt-4o", fetched["name"])
	messages, _ := fetched["messages"].([]any)
	assert.Len(t, messages, 2)
}

func TestGetConversationTriState(t *testing.T) {
	repo := newMemoryRepository()
	router := newTestRouter(repo, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	t.Run("empty payload returns identity only", func(t *testing.T) {
		repo.rows[id].Payload = nil
		rec := doJSON(t, router, http.MethodGet, "/api/conversation/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, id, body["id"])
		_, hasMessages := body["messages"]
		assert.False(t, hasMessages)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/conversation/doesnotexist000000000", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("foreign owner is 404", func(t *testing.T) {
		other := newTestRouter(repo, "mallory")
		rec := doJSON(t, other, http.MethodGet, "/api/conversation/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateConversationOwnership(t *testing.T) {
	repo := newMemoryRepository()
	router := newTestRouter(repo, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	update := `{
		"provider": "openai",
		"name": "gpt-4o",
		"messages": [
			{"role": "user", "content": "hello there"},
			{"role": "assistant", "content": "hi"},
			{"role": "user", "content": "more"},
			{"role": "assistant", "content": "sure"}
		]
	}`

	rec = doJSON(t, router, http.MethodPost, "/api/conversation/"+id, update)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	// Title never recomputes on update.
	assert.Equal(t, "hello there", updated["title"])

	foreign := newTestRouter(repo, "mallory")
	rec = doJSON(t, foreign, http.MethodPost, "/api/conversation/"+id, update)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListConversations(t *testing.T) {
	repo := newMemoryRepository()
	router := newTestRouter(repo, "alice")

	for range 3 {
		rec := doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/conversation?page=1&limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 3)
	// Summaries never leak the payload.
	_, hasMessages := items[0]["messages"]
	assert.False(t, hasMessages)
}

func TestDeleteConversation(t *testing.T) {
	repo := newMemoryRepository()
	router := newTestRouter(repo, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	rec = doJSON(t, router, http.MethodDelete, "/api/conversation/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/conversation/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), "")

	rec := doJSON(t, router, http.MethodGet, "/api/conversation", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/conversation", createBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
