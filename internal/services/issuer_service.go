// internal/services/issuer_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/utils"
)

const (
	certificatePrefix    = "CERT"
	certificateSuffixLen = 6
	maxSuffixDraws       = 8
)

var ErrInvalidIssue = errors.New("invalid certificate issue request")

// Anchor is the ledger write that recorded a stage transition.
type Anchor struct {
	TransactionHash string
	BlockNumber     uint64
	Data            models.BlockchainData
}

// CertificateIssuer builds certificate records. It does not persist them.
type CertificateIssuer struct {
	now    func() time.Time
	suffix func() (string, error)

	mu     sync.Mutex
	lastMs int64
	seen   map[string]struct{}
}

func NewCertificateIssuer() *CertificateIssuer {
	return &CertificateIssuer{
		now: time.Now,
		suffix: func() (string, error) {
			return utils.GenerateUpperAlphanumeric(certificateSuffixLen)
		},
	}
}

// GenerateID returns CERT-<unix millis>-<6 chars of [A-Z0-9]>. The millisecond
// part never decreases across calls even if the wall clock steps back, and
// suffixes are not reused within one millisecond of this issuer.
func (i *CertificateIssuer) GenerateID() (string, time.Time, error) {
	now := i.now()

	i.mu.Lock()
	defer i.mu.Unlock()

	ms := now.UnixMilli()
	if ms < i.lastMs {
		ms = i.lastMs
	}
	if ms != i.lastMs || i.seen == nil {
		i.lastMs = ms
		i.seen = make(map[string]struct{})
	}

	for attempt := 0; attempt < maxSuffixDraws; attempt++ {
		suffix, err := i.suffix()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("failed to generate certificate suffix: %w", err)
		}
		if _, dup := i.seen[suffix]; dup {
			continue
		}
		i.seen[suffix] = struct{}{}
		return fmt.Sprintf("%s-%013d-%s", certificatePrefix, ms, suffix), time.UnixMilli(ms).UTC(), nil
	}

	return "", time.Time{}, fmt.Errorf("no free certificate suffix for %d after %d draws", ms, maxSuffixDraws)
}

// Issue builds the record for a product that just completed stage.
func (i *CertificateIssuer) Issue(product models.ProductSnapshot, stage models.Stage, anchor Anchor) (models.Certificate, error) {
	if !stage.Valid() {
		return models.Certificate{}, fmt.Errorf("%w: stage %d out of range", ErrInvalidIssue, stage)
	}
	if strings.TrimSpace(product.ProductID) == "" || strings.TrimSpace(product.ProductName) == "" {
		return models.Certificate{}, fmt.Errorf("%w: product id and name are required", ErrInvalidIssue)
	}
	if strings.TrimSpace(anchor.TransactionHash) == "" {
		return models.Certificate{}, fmt.Errorf("%w: anchoring transaction hash is required", ErrInvalidIssue)
	}

	id, issuedAt, err := i.GenerateID()
	if err != nil {
		return models.Certificate{}, err
	}

	return models.Certificate{
		CertificateRecord: models.CertificateRecord{
			ID:              id,
			ProductID:       product.ProductID,
			ProductName:     product.ProductName,
			Status:          stage,
			TransactionHash: anchor.TransactionHash,
			BlockNumber:     anchor.BlockNumber,
			Timestamp:       issuedAt,
			Participants:    product.Participants,
		},
		Anchor: anchor.Data,
	}, nil
}
