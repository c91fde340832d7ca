// internal/services/certificate_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/utils"
)

const maxIssueAttempts = 3

var (
	ErrStageForbidden     = errors.New("role may not record this stage")
	ErrStageRegression    = errors.New("stage is behind the product's recorded stage")
	ErrProductTerminal    = errors.New("product lifecycle already completed")
	ErrUnknownTransaction = errors.New("anchoring transaction not found on ledger")
)

type StageRegressionError struct {
	Requested models.Stage
	Recorded  models.Stage
}

func (e *StageRegressionError) Error() string {
	return fmt.Sprintf("stage %s is behind recorded stage %s", e.Requested, e.Recorded)
}

func (e *StageRegressionError) Unwrap() error {
	return ErrStageRegression
}

type certificateArchiver interface {
	Archive(ctx context.Context, cert *models.Certificate) (*ArchiveResult, error)
}

type CertificateService struct {
	issuer   *CertificateIssuer
	registry registry.Registry
	ledger   ledger.Client
	archive  certificateArchiver
	cfg      *config.Config
}

type IssueCertificateRequest struct {
	Product         models.ProductSnapshot `json:"product"`
	Stage           models.Stage           `json:"stage" validate:"lte=7"`
	TransactionHash string                 `json:"transaction_hash" validate:"required,tx_hash"`
}

type IssueCertificateResponse struct {
	Certificate     models.Certificate `json:"certificate"`
	VerificationURL string             `json:"verification_url"`
	ExplorerURL     string             `json:"explorer_url"`
	Archive         *ArchiveResult     `json:"archive,omitempty"`
}

func NewCertificateService(
	issuer *CertificateIssuer,
	reg registry.Registry,
	client ledger.Client,
	archive certificateArchiver,
	cfg *config.Config,
) *CertificateService {
	return &CertificateService{
		issuer:   issuer,
		registry: reg,
		ledger:   client,
		archive:  archive,
		cfg:      cfg,
	}
}

// IssueForStage records completion of a stage by the acting principal and
// stores the resulting certificate.
func (s *CertificateService) IssueForStage(ctx context.Context, actor models.AuthorizationState, req *IssueCertificateRequest) (*IssueCertificateResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !actor.Authorized || actor.Role != req.Stage.IssuerRole() {
		return nil, fmt.Errorf("%w: %s requires %s, actor is %q", ErrStageForbidden, req.Stage, req.Stage.IssuerRole(), actor.Role)
	}

	if err := s.checkProgression(ctx, req.Product.ProductID, req.Stage); err != nil {
		return nil, err
	}

	found, err := callWithDeadline(ctx, s.cfg.Blockchain.CallTimeout, "anchor lookup",
		func(ctx context.Context) (anchorLookup, error) {
			d, n, err := s.ledger.AnchorMetadata(ctx, req.TransactionHash)
			return anchorLookup{d, n}, err
		})
	if err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, req.TransactionHash)
		}
		return nil, err
	}

	product := req.Product
	fillParticipant(&product.Participants, actor)

	cert, err := s.store(ctx, product, req.Stage, Anchor{
		TransactionHash: req.TransactionHash,
		BlockNumber:     found.blockNumber,
		Data:            found.data,
	})
	if err != nil {
		return nil, err
	}

	resp := &IssueCertificateResponse{
		Certificate:     *cert,
		VerificationURL: s.VerificationLink(cert.CertificateRecord),
		ExplorerURL:     s.ExplorerLink(cert.TransactionHash),
	}

	if s.archive != nil {
		archived, err := s.archive.Archive(ctx, cert)
		if err != nil {
			logrus.WithError(err).WithField("certificate_id", cert.ID).Error("Failed to archive certificate")
		}
		resp.Archive = archived
	}

	logrus.WithFields(logrus.Fields{
		"certificate_id": cert.ID,
		"product_id":     cert.ProductID,
		"stage":          cert.Status.String(),
		"principal":      actor.Principal,
	}).Info("Certificate issued")

	return resp, nil
}

type anchorLookup struct {
	data        models.BlockchainData
	blockNumber uint64
}

// checkProgression rejects early, before the ledger is consulted. The same rule
// is enforced again atomically when the record is appended.
func (s *CertificateService) checkProgression(ctx context.Context, productID string, stage models.Stage) error {
	latest, err := s.registry.Latest(ctx, productID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return admitStage(productID, stage)(latest)
}

// admitStage enforces that stages never decrease and nothing follows the
// terminal stage.
func admitStage(productID string, stage models.Stage) registry.Admission {
	return func(latest *models.Certificate) error {
		if latest == nil {
			return nil
		}
		if latest.Status.Terminal() {
			return fmt.Errorf("%w: product %s", ErrProductTerminal, productID)
		}
		if stage < latest.Status {
			return &StageRegressionError{Requested: stage, Recorded: latest.Status}
		}
		return nil
	}
}

// store saves a freshly issued record, redrawing the id if it is taken.
func (s *CertificateService) store(ctx context.Context, product models.ProductSnapshot, stage models.Stage, anchor Anchor) (*models.Certificate, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		cert, err := s.issuer.Issue(product, stage, anchor)
		if err != nil {
			return nil, err
		}

		taken, err := s.registry.Exists(ctx, cert.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		err = s.registry.Append(ctx, &cert, admitStage(product.ProductID, stage))
		if err == nil {
			return &cert, nil
		}
		if !errors.Is(err, registry.ErrDuplicate) {
			return nil, err
		}
		if _, findErr := s.registry.FindByTransaction(ctx, anchor.TransactionHash); findErr == nil {
			return nil, fmt.Errorf("%w: transaction %s", registry.ErrDuplicate, anchor.TransactionHash)
		}
	}

	return nil, fmt.Errorf("failed to allocate a certificate id after %d attempts", maxIssueAttempts)
}

func fillParticipant(p *models.Participants, actor models.AuthorizationState) {
	switch actor.Role {
	case models.RoleProducer:
		if p.Producer == "" {
			p.Producer = actor.Principal
		}
	case models.RoleDistributor:
		if p.Distributor == "" {
			p.Distributor = actor.Principal
		}
	case models.RoleRetailer:
		if p.Retailer == "" {
			p.Retailer = actor.Principal
		}
	}
}

func (s *CertificateService) History(ctx context.Context, productID string, params utils.PaginationParams) ([]models.Certificate, int64, error) {
	return s.registry.History(ctx, productID, params.Offset(), params.Limit)
}

// VerificationLink is the lookup key pair meant for the scannable code printed
// on the certificate document.
func (s *CertificateService) VerificationLink(rec models.CertificateRecord) string {
	q := url.Values{}
	q.Set("certificate_id", rec.ID)
	q.Set("transaction_hash", rec.TransactionHash)
	return strings.TrimRight(s.cfg.Frontend.BaseURL, "/") + "/verify?" + q.Encode()
}

func (s *CertificateService) ExplorerLink(txHash string) string {
	return strings.TrimRight(s.cfg.Blockchain.ExplorerURL, "/") + "/tx/" + txHash
}
