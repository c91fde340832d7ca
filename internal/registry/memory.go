// internal/registry/memory.go
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/ntptrace/trace-backend/internal/models"
)

type MemoryRegistry struct {
	mu    sync.RWMutex
	byID  map[string]models.Certificate
	byTx  map[string]string
	order []string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID: make(map[string]models.Certificate),
		byTx: make(map[string]string),
	}
}

func (r *MemoryRegistry) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cert, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &cert, nil
}

func (r *MemoryRegistry) FindByTransaction(ctx context.Context, txHash string) (*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTx[NormalizeTxHash(txHash)]
	if !ok {
		return nil, ErrNotFound
	}
	cert := r.byID[id]
	return &cert, nil
}

func (r *MemoryRegistry) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byID[id]
	return ok, nil
}

func (r *MemoryRegistry) Save(ctx context.Context, cert *models.Certificate) error {
	return r.Append(ctx, cert, nil)
}

func (r *MemoryRegistry) Append(ctx context.Context, cert *models.Certificate, admit Admission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if admit != nil {
		var latest *models.Certificate
		if records := r.productRecords(cert.ProductID); len(records) > 0 {
			latest = &records[len(records)-1]
		}
		if err := admit(latest); err != nil {
			return err
		}
	}

	tx := NormalizeTxHash(cert.TransactionHash)
	if _, ok := r.byID[cert.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byTx[tx]; ok {
		return ErrDuplicate
	}

	stored := *cert
	stored.TransactionHash = tx
	r.byID[cert.ID] = stored
	r.byTx[tx] = cert.ID
	r.order = append(r.order, cert.ID)
	return nil
}

func (r *MemoryRegistry) productRecords(productID string) []models.Certificate {
	var out []models.Certificate
	for _, id := range r.order {
		if c := r.byID[id]; c.ProductID == productID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (r *MemoryRegistry) Latest(ctx context.Context, productID string) (*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.productRecords(productID)
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	latest := records[len(records)-1]
	return &latest, nil
}

func (r *MemoryRegistry) History(ctx context.Context, productID string, offset, limit int) ([]models.Certificate, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.productRecords(productID)
	total := int64(len(records))
	if offset >= len(records) {
		return []models.Certificate{}, total, nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end], total, nil
}
