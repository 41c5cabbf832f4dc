package repository

import (
	"context"
	"fmt"
	"sync"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

// MemoryCartRepository keeps carts in process. Stored carts are copies so
// callers never share slices with the store.
type MemoryCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *MemoryCartRepository) Load(ctx context.Context, cartID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("cart %s not found", cartID))
	}
	return cart.Clone(), nil
}

func (r *MemoryCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.ID] = cart.Clone()
	return nil
}

func (r *MemoryCartRepository) Clear(ctx context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, cartID)
	return nil
}
