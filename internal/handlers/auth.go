// internal/handlers/auth.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/challenge
func (h *AuthHandler) Challenge(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	challenge, err := h.authService.Challenge(&req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, challenge)
}

// POST /auth/resolve
func (h *AuthHandler) Resolve(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.authService.Resolve(c.Request.Context(), &req)
	if errors.Is(err, services.ErrProofRejected) {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthProofRejected))
		return
	}
	if errors.Is(err, services.ErrStaleResolution) {
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyAuthSessionStale))
		return
	}
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	c.Set("principal", resp.State.Principal)

	if !resp.State.Authorized {
		utils.SuccessResponse(c, gin.H{
			"message":  i18n.T(lang, i18n.KeyAuthUnregistered, resp.State.Principal),
			"state":    resp.State,
			"redirect": resp.Redirect,
		})
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeySuccess),
		"state":      resp.State,
		"token":      resp.AccessToken,
		"token_type": resp.TokenType,
		"expires_in": resp.ExpiresIn,
		"redirect":   resp.Redirect,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	principal, ok := utils.GetPrincipalFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	out := h.authService.Logout(ledger.Principal(principal))

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyAuthLogoutSuccess),
		"redirect": out.Redirect,
	})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := utils.GetPrincipalFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	state, ok := h.authService.Current(ledger.Principal(principal))
	if !ok {
		utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthSessionStale))
		return
	}

	utils.SuccessResponse(c, state)
}
