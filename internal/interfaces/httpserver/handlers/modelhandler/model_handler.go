package modelhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// Handler serves the model catalog.
type Handler struct {
	catalog *catalog.Catalog
	log     zerolog.Logger
}

func NewHandler(cat *catalog.Catalog, log zerolog.Logger) *Handler {
	return &Handler{
		catalog: cat,
		log:     log.With().Str("handler", "model").Logger(),
	}
}

// List handles GET /api/models. Only models visible to the caller's roles
// are returned. The selected entry honors explicit provider/name query
// parameters, then the catalog default, then the first visible model.
func (h *Handler) List(c *gin.Context) {
	principal, ok := middlewares.RequirePrincipal(c)
	if !ok {
		return
	}

	visible := h.catalog.VisibleTo(principal.Roles)
	selected, ok := h.catalog.Select(c.Query("provider"), c.Query("name"), principal.Roles)
	if !ok {
		responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, "no models available")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"models": visible,
		"selected": gin.H{
			"provider": selected.Provider,
			"name":     selected.Name,
		},
	})
}
