// internal/services/verification_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
)

// VerificationService checks submitted lookup keys against the registry. It
// holds no per-call state and is safe for concurrent use.
type VerificationService struct {
	registry      registry.Registry
	timeout       time.Duration
	crossValidate bool
}

func NewVerificationService(reg registry.Registry, timeout time.Duration, crossValidate bool) *VerificationService {
	return &VerificationService{
		registry:      reg,
		timeout:       timeout,
		crossValidate: crossValidate,
	}
}

// Verify looks the certificate up by id, or by transaction hash when no id is
// given. When both are given the id wins and, if enabled, the record's hash
// must match the supplied one.
func (s *VerificationService) Verify(ctx context.Context, certificateID, transactionHash string) models.VerificationResult {
	certificateID = strings.TrimSpace(certificateID)
	transactionHash = strings.TrimSpace(transactionHash)

	if certificateID == "" && transactionHash == "" {
		return models.VerificationFailure(models.ErrorKindMissingLookupKey)
	}

	cert, err := callWithDeadline(ctx, s.timeout, "certificate lookup", func(ctx context.Context) (*models.Certificate, error) {
		if certificateID != "" {
			return s.registry.FindByID(ctx, certificateID)
		}
		return s.registry.FindByTransaction(ctx, transactionHash)
	})
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return models.VerificationFailure(models.ErrorKindNotFound)
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"certificate_id":   certificateID,
			"transaction_hash": transactionHash,
		}).Warn("Certificate lookup failed")
		return models.VerificationFailure(models.ErrorKindLedgerUnavailable)
	}

	if s.crossValidate && certificateID != "" && transactionHash != "" &&
		registry.NormalizeTxHash(cert.TransactionHash) != registry.NormalizeTxHash(transactionHash) {
		return models.VerificationFailure(models.ErrorKindMismatch)
	}

	return models.VerificationSuccess(*cert)
}
