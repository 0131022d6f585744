package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/domain"
	authvalidator "parley-server/internal/infrastructure/auth"
	"parley-server/internal/interfaces/httpserver/responses"
)

const principalContextKey = "principal"

// AuthMiddleware validates bearer tokens and binds the resulting principal
// to the request. Requests without a valid principal are rejected before any
// handler runs; there is no partial data exposure.
func AuthMiddleware(validator *authvalidator.Validator, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			responses.HandleUnauthorized(c, "authentication required")
			return
		}

		principal, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Warn().Err(err).
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("token validation failed")
			responses.HandleUnauthorized(c, "unauthorized")
			return
		}

		setPrincipal(c, *principal)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// RequirePrincipal returns the principal or rejects the request. Handlers
// use this instead of trusting that the middleware ran.
func RequirePrincipal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		responses.HandleUnauthorized(c, "authentication required")
		return domain.Principal{}, false
	}
	return principal, true
}

// SetPrincipalForTest binds a principal directly, bypassing token
// validation. Test helper only.
func SetPrincipalForTest(c *gin.Context, principal domain.Principal) {
	setPrincipal(c, principal)
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Set("user_id", principal.ID)
	if len(principal.Roles) > 0 {
		c.Set("realm_roles", principal.Roles)
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
