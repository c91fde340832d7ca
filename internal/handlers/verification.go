// internal/handlers/verification.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

type VerificationHandler struct {
	verificationService *services.VerificationService
	certificateService  *services.CertificateService
}

func NewVerificationHandler(verificationService *services.VerificationService, certificateService *services.CertificateService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		certificateService:  certificateService,
	}
}

// GET /verify?certificate_id=&transaction_hash=
func (h *VerificationHandler) Verify(c *gin.Context) {
	result := h.verificationService.Verify(c.Request.Context(), c.Query("certificate_id"), c.Query("transaction_hash"))
	h.respond(c, result)
}

// GET /verify/:id
func (h *VerificationHandler) VerifyByID(c *gin.Context) {
	result := h.verificationService.Verify(c.Request.Context(), c.Param("id"), "")
	h.respond(c, result)
}

func (h *VerificationHandler) respond(c *gin.Context, result models.VerificationResult) {
	lang := utils.GetLangFromContext(c)

	if result.Valid {
		utils.SuccessResponse(c, gin.H{
			"message":          i18n.T(lang, i18n.KeyVerificationSuccess),
			"valid":            true,
			"certificate":      result.Certificate,
			"blockchainData":   result.BlockchainData,
			"verification_url": h.certificateService.VerificationLink(*result.Certificate),
			"explorer_url":     h.certificateService.ExplorerLink(result.Certificate.TransactionHash),
		})
		return
	}

	var details gin.H
	if result.Error.Retryable() {
		details = gin.H{"retryable": true}
	}
	utils.ErrorResponse(c, verificationStatus(result.Error), string(result.Error),
		i18n.T(lang, i18n.VerificationKey(string(result.Error))), details)
}

func verificationStatus(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindMissingLookupKey:
		return http.StatusBadRequest
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindMismatch:
		return http.StatusConflict
	case models.ErrorKindLedgerUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
