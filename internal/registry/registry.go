// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/ntptrace/trace-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("certificate not found")
	ErrDuplicate = errors.New("certificate already exists")
	// ErrUnavailable marks storage failures a caller may retry.
	ErrUnavailable = errors.New("certificate registry unavailable")
)

// Admission decides whether a record may follow a product's latest record.
// latest is nil when the product has none.
type Admission func(latest *models.Certificate) error

// Registry maps certificate ids and transaction hashes to anchored records.
// Records are append-only. Returned values are copies.
type Registry interface {
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByTransaction(ctx context.Context, txHash string) (*models.Certificate, error)
	Exists(ctx context.Context, id string) (bool, error)
	Save(ctx context.Context, cert *models.Certificate) error
	// Append saves cert only if admit accepts the product's latest record. The
	// check and the insert are atomic with respect to other appends for the
	// same product.
	Append(ctx context.Context, cert *models.Certificate, admit Admission) error
	// Latest returns the record with the highest stage for a product.
	Latest(ctx context.Context, productID string) (*models.Certificate, error)
	// History lists a product's records ordered by stage then timestamp.
	History(ctx context.Context, productID string, offset, limit int) ([]models.Certificate, int64, error)
}

// NormalizeTxHash makes transaction hash lookups case-insensitive.
func NormalizeTxHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
