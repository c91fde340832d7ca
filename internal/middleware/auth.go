// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

const (
	ContextPrincipal  = "principal"
	ContextRole       = "role"
	ContextGeneration = "generation"
)

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired admits requests carrying a session token whose generation is
// still the one published for its principal.
func AuthRequired(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		if c.GetHeader("Authorization") == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateSessionToken(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		if !sessions.IsCurrent(ledger.Principal(claims.Principal), claims.Generation) {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthSessionStale))
			c.Abort()
			return
		}

		c.Set(ContextPrincipal, claims.Principal)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextGeneration, claims.Generation)
		c.Next()
	}
}

// RoleRequired must run after AuthRequired.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetRoleFromContext(c)
		for _, r := range roles {
			if models.Role(role) == r {
				c.Next()
				return
			}
		}

		utils.ForbiddenResponse(c, "")
		c.Abort()
	}
}

// OptionalAuth attaches the principal of a valid session token, if any.
func OptionalAuth(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := utils.ValidateSessionToken(token)
		if err != nil || !sessions.IsCurrent(ledger.Principal(claims.Principal), claims.Generation) {
			c.Next()
			return
		}

		c.Set(ContextPrincipal, claims.Principal)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextGeneration, claims.Generation)
		c.Next()
	}
}
