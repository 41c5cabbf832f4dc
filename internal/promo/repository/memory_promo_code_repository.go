package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

type MemoryPromoCodeRepository struct {
	mu    sync.RWMutex
	codes map[string]domain.PromoCode
}

func NewMemoryPromoCodeRepository(codes ...domain.PromoCode) *MemoryPromoCodeRepository {
	r := &MemoryPromoCodeRepository{codes: make(map[string]domain.PromoCode)}
	for _, c := range codes {
		r.Put(c)
	}
	return r
}

func (r *MemoryPromoCodeRepository) Put(code domain.PromoCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	r.codes[code.Code] = code
}

func (r *MemoryPromoCodeRepository) FindByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	promo, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("promo code %q not found", code))
	}
	return &promo, nil
}
