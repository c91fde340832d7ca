// internal/registry/postgres.go
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ntptrace/trace-backend/internal/models"
)

const uniqueViolation = "23505"

type PostgresRegistry struct {
	db *gorm.DB
}

func NewPostgresRegistry(db *gorm.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cert).Error; err != nil {
		return nil, classify(err)
	}
	return &cert, nil
}

func (r *PostgresRegistry) FindByTransaction(ctx context.Context, txHash string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).
		Where("transaction_hash = ?", NormalizeTxHash(txHash)).
		First(&cert).Error; err != nil {
		return nil, classify(err)
	}
	return &cert, nil
}

func (r *PostgresRegistry) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Certificate{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

func (r *PostgresRegistry) Save(ctx context.Context, cert *models.Certificate) error {
	return r.Append(ctx, cert, nil)
}

// Append serializes writers per product with a transaction-scoped advisory
// lock, so the admission check sees every record committed before it.
func (r *PostgresRegistry) Append(ctx context.Context, cert *models.Certificate, admit Admission) error {
	row := *cert
	row.TransactionHash = NormalizeTxHash(row.TransactionHash)

	var admitErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if admit != nil {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", row.ProductID).Error; err != nil {
				return err
			}

			latest, err := latestRecord(tx, row.ProductID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if admitErr = admit(latest); admitErr != nil {
				return admitErr
			}
		}

		// Create never upserts: an existing id or transaction hash is a conflict.
		return tx.Create(&row).Error
	})
	if admitErr != nil {
		return admitErr
	}
	if err != nil {
		return classify(err)
	}
	cert.CreatedAt = row.CreatedAt
	return nil
}

func latestRecord(db *gorm.DB, productID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := db.Where("product_id = ?", productID).
		Order("status DESC, timestamp DESC").
		First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *PostgresRegistry) Latest(ctx context.Context, productID string) (*models.Certificate, error) {
	cert, err := latestRecord(r.db.WithContext(ctx), productID)
	if err != nil {
		return nil, classify(err)
	}
	return cert, nil
}

func (r *PostgresRegistry) History(ctx context.Context, productID string, offset, limit int) ([]models.Certificate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Certificate{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var certs []models.Certificate
	if err := query.Order("status ASC, timestamp ASC").
		Offset(offset).Limit(limit).
		Find(&certs).Error; err != nil {
		return nil, 0, classify(err)
	}
	return certs, total, nil
}

func classify(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
