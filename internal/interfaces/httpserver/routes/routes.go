package routes

import (
	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
	"parley-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"parley-server/internal/interfaces/httpserver/handlers/modelhandler"
)

// Handlers bundles the route handlers for registration.
type Handlers struct {
	Chat          *chathandler.Handler
	Conversations *conversationhandler.Handler
	Models        *modelhandler.Handler
}

// Register wires the API routes onto an authenticated group.
func Register(api *gin.RouterGroup, h Handlers) {
	api.POST("/chat/:provider", h.Chat.ChatCompletion)

	api.GET("/conversation", h.Conversations.List)
	api.POST("/conversation", h.Conversations.Create)
	api.GET("/conversation/:id", h.Conversations.Get)
	api.POST("/conversation/:id", h.Conversations.Update)
	api.DELETE("/conversation/:id", h.Conversations.Delete)

	api.GET("/models", h.Models.List)
}
