// internal/handlers/certificate.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

type CertificateHandler struct {
	certificateService *services.CertificateService
	authService        *services.AuthService
}

func NewCertificateHandler(certificateService *services.CertificateService, authService *services.AuthService) *CertificateHandler {
	return &CertificateHandler{
		certificateService: certificateService,
		authService:        authService,
	}
}

// POST /certificates
func (h *CertificateHandler) Issue(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	principal, _ := utils.GetPrincipalFromContext(c)
	actor, ok := h.authService.Current(ledger.Principal(principal))
	if !ok {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthSessionStale))
		return
	}

	var req services.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.certificateService.IssueForStage(c.Request.Context(), actor, &req)
	if err != nil {
		h.issueError(c, lang, &req, err)
		return
	}

	c.Set("resource_id", resp.Certificate.ID)

	utils.CreatedResponse(c, gin.H{
		"message":          i18n.T(lang, i18n.KeyCertificateIssued),
		"certificate":      resp.Certificate,
		"verification_url": resp.VerificationURL,
		"explorer_url":     resp.ExplorerURL,
		"archive":          resp.Archive,
	})
}

func (h *CertificateHandler) issueError(c *gin.Context, lang string, req *services.IssueCertificateRequest, err error) {
	var regression *services.StageRegressionError

	switch {
	case errors.Is(err, services.ErrStageForbidden):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyCertificateStageForbidden, req.Stage, req.Stage.IssuerRole()))
	case errors.As(err, &regression):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyCertificateStageRegressed, regression.Requested, regression.Recorded))
	case errors.Is(err, services.ErrProductTerminal):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyCertificateTerminal))
	case errors.Is(err, registry.ErrDuplicate):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyCertificateDuplicate))
	case errors.Is(err, services.ErrUnknownTransaction), errors.Is(err, ledger.ErrInvalidTxHash):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyCertificateTxUnknown), nil)
	case errors.Is(err, services.ErrInvalidIssue):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, ledger.ErrUnavailable), errors.Is(err, registry.ErrUnavailable):
		utils.UnavailableResponse(c, "")
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// GET /certificates/product/:productId/history
func (h *CertificateHandler) History(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		utils.BadRequestResponse(c, "", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	certs, total, err := h.certificateService.History(c.Request.Context(), productID, params)
	if errors.Is(err, registry.ErrUnavailable) {
		utils.UnavailableResponse(c, "")
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	if total == 0 {
		utils.NotFoundResponse(c, "certificate")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(certs, total, params))
}
