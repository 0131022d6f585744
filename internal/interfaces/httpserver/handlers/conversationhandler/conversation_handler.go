package conversationhandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// Handler serves conversation store endpoints.
type Handler struct {
	service *conversation.Service
	log     zerolog.Logger
}

func NewHandler(service *conversation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// List handles GET /api/conversation?page&limit. The owner's total count is
// reported through the X-Total-Count header so clients can render page
// controls without a second request.
func (h *Handler) List(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	var q requests.ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid pagination query")
		return
	}

	items, total, err := h.service.List(c.Request.Context(), principal.ID, q.Pagination())
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, responses.NewConversationList(items))
}

// Create handles POST /api/conversation.
func (h *Handler) Create(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	var req requests.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid conversation request: "+err.Error())
		return
	}

	draft, err := req.ToDraft()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error())
		return
	}

	conv, err := h.service.Create(c.Request.Context(), principal.ID, draft)
	if err != nil {
		responses.HandleError(c, err, "failed to create conversation")
		return
	}

	c.JSON(http.StatusCreated, responses.NewConversationDetail(conv))
}

// Get handles GET /api/conversation/:id. A conversation that exists but has
// no chat payload yet returns its identity fields only; a missing or
// foreign-owned id is a 404.
func (h *Handler) Get(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	conv, result, err := h.service.Get(c.Request.Context(), c.Param("id"), principal.ID)
	if err != nil {
		responses.HandleError(c, err, "failed to fetch conversation")
		return
	}

	switch result {
	case conversation.GetFound:
		c.JSON(http.StatusOK, responses.NewConversationDetail(conv))
	case conversation.GetFoundEmpty:
		c.JSON(http.StatusOK, responses.NewConversationSummary(conv))
	default:
		responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
}

// Update handles POST /api/conversation/:id.
func (h *Handler) Update(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	var req requests.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid conversation request: "+err.Error())
		return
	}

	draft, err := req.ToDraft()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error())
		return
	}

	conv, err := h.service.Update(c.Request.Context(), c.Param("id"), principal.ID, draft)
	if err != nil {
		responses.HandleError(c, err, "failed to update conversation")
		return
	}

	c.JSON(http.StatusOK, responses.NewConversationDetail(conv))
}

// Delete handles DELETE /api/conversation/:id.
func (h *Handler) Delete(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principal.ID); err != nil {
		responses.HandleError(c, err, "failed to delete conversation")
		return
	}

	c.Status(http.StatusNoContent)
}
