package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

type MemoryCheckoutRecordRepository struct {
	mu      sync.RWMutex
	records map[string]domain.CheckoutRecord
}

func NewMemoryCheckoutRecordRepository() *MemoryCheckoutRecordRepository {
	return &MemoryCheckoutRecordRepository{records: make(map[string]domain.CheckoutRecord)}
}

func (r *MemoryCheckoutRecordRepository) Save(ctx context.Context, record *domain.CheckoutRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.CartID] = *record
	return nil
}

func (r *MemoryCheckoutRecordRepository) FindByCartID(ctx context.Context, cartID string) (*domain.CheckoutRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[cartID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("checkout record for cart %s not found", cartID))
	}
	return &record, nil
}

func (r *MemoryCheckoutRecordRepository) UpdateStatus(ctx context.Context, cartID, attemptID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[cartID]
	if !ok || record.AttemptID != attemptID {
		return errors.NewNotFoundError(fmt.Sprintf("checkout record for cart %s attempt %s not found", cartID, attemptID))
	}
	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	r.records[cartID] = record
	return nil
}
