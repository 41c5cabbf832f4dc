package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// MemoryGuard is the single-process InFlightGuard. Leases expire after ttl
// so a crashed attempt cannot block its cart forever.
type MemoryGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]lease
	now    func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, leases: make(map[string]lease), now: time.Now}
}

func (g *MemoryGuard) live(cartID string) (lease, bool) {
	l, ok := g.leases[cartID]
	if !ok {
		return lease{}, false
	}
	if g.ttl > 0 && !g.now().Before(l.expiresAt) {
		delete(g.leases, cartID)
		return lease{}, false
	}
	return l, true
}

func (g *MemoryGuard) Acquire(ctx context.Context, cartID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.live(cartID); held {
		return "", false, nil
	}
	token := uuid.NewString()
	g.leases[cartID] = lease{token: token, expiresAt: g.now().Add(g.ttl)}
	return token, true, nil
}

func (g *MemoryGuard) IsCurrent(ctx context.Context, cartID, token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.live(cartID)
	return ok && l.token == token, nil
}

func (g *MemoryGuard) Release(ctx context.Context, cartID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.leases[cartID]; ok && l.token == token {
		delete(g.leases, cartID)
	}
	return nil
}

func (g *MemoryGuard) Invalidate(ctx context.Context, cartID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.leases, cartID)
	return nil
}
