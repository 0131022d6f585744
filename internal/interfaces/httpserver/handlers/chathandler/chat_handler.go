package chathandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/chat"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// persistWaitTimeout bounds how long a request waits for the turn's persist
// outcome before closing the stream without a conversation id.
const persistWaitTimeout = 30 * time.Second

// Handler runs streaming chat turns over SSE.
type Handler struct {
	engine  *chat.Engine
	catalog *catalog.Catalog
	log     zerolog.Logger
}

func NewHandler(engine *chat.Engine, cat *catalog.Catalog, log zerolog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		catalog: cat,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// ChatCompletion handles POST /api/chat/:provider. The response is an SSE
// stream of content deltas, then the completed assistant message, then the
// persist outcome carrying the conversation id, then a [DONE] marker.
func (h *Handler) ChatCompletion(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	providerID := c.Param("provider")

	var req requests.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid chat request: "+err.Error())
		return
	}

	model, found := h.catalog.Find(providerID, req.Name)
	if !found || !model.VisibleTo(principal.Roles) {
		responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, fmt.Sprintf("model %s/%s not available", providerID, req.Name))
		return
	}

	history, content, err := req.Split()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error())
		return
	}

	params := catalog.ResolveParams(model.Variables, requests.ToDomainParams(req.Params))

	flusher, ok := middlewares.PrepareSSE(c)
	if !ok {
		responses.HandleNewError(c, platformerrors.ErrorTypeInternal, "streaming unsupported by connection")
		return
	}

	session := h.engine.StartSession(principal.ID, model, params, history, req.ID)
	defer session.End()

	sink := newSSESink(c, flusher, model.Provider)
	start := time.Now()

	if err := session.Submit(c.Request.Context(), content, sink); err != nil {
		metrics.RecordTurn(model.Provider, model.Name, "error", time.Since(start).Seconds())
		if !sink.wroteAny() {
			// Nothing streamed yet, a plain error response is still possible.
			c.Writer.Header().Del("Content-Type")
			responses.HandleError(c, err, "chat turn failed")
			return
		}
		sink.writeError(err)
		sink.writeDone()
		return
	}

	metrics.RecordTurn(model.Provider, model.Name, "success", time.Since(start).Seconds())

	operation := "update"
	if req.ID == "" {
		operation = "create"
	}

	select {
	case outcome := <-sink.persisted:
		if outcome.err != nil {
			metrics.RecordPersist(operation, "error")
			sink.writeEvent(sseEvent{Error: "conversation was not persisted"})
		} else {
			metrics.RecordPersist(operation, "success")
			sink.writeEvent(sseEvent{ConversationID: outcome.conversationID})
		}
	case <-time.After(persistWaitTimeout):
		h.log.Warn().Msg("persist outcome not ready before stream close")
	}

	sink.writeDone()
}

// sseEvent is the wire shape of one SSE data frame. Exactly one field group
// is set per frame.
type sseEvent struct {
	Delta          string `json:"delta,omitempty"`
	Role           string `json:"role,omitempty"`
	Content        string `json:"content,omitempty"`
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type persistOutcome struct {
	conversationID string
	err            error
}

// sseSink adapts the turn sink callbacks onto the SSE response.
type sseSink struct {
	c         *gin.Context
	flusher   http.Flusher
	provider  string
	persisted chan persistOutcome

	mu    sync.Mutex
	wrote bool
}

func newSSESink(c *gin.Context, flusher http.Flusher, provider string) *sseSink {
	return &sseSink{
		c:         c,
		flusher:   flusher,
		provider:  provider,
		persisted: make(chan persistOutcome, 1),
	}
}

func (s *sseSink) OnDelta(delta string) error {
	metrics.StreamDeltasTotal.WithLabelValues(s.provider).Inc()
	return s.writeEvent(sseEvent{Delta: delta})
}

func (s *sseSink) OnComplete(message conversation.Message) error {
	return s.writeEvent(sseEvent{
		Role:    string(message.Role),
		Content: message.Content,
		ID:      message.ID,
	})
}

func (s *sseSink) OnPersisted(conversationID string, err error) {
	s.persisted <- persistOutcome{conversationID: conversationID, err: err}
}

func (s *sseSink) writeEvent(event sseEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", raw); err != nil {
		return err
	}
	s.wrote = true
	s.flusher.Flush()
	return nil
}

func (s *sseSink) writeError(err error) {
	message := "provider stream failed"
	if platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
		message = "a turn is already in flight"
	}
	_ = s.writeEvent(sseEvent{Error: message})
}

func (s *sseSink) writeDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.c.Writer, "data: [DONE]\n\n")
	s.flusher.Flush()
}

func (s *sseSink) wroteAny() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrote
}

var _ chat.TurnSink = (*sseSink)(nil)
