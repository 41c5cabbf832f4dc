package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"campcart/internal/availability"
	"campcart/internal/domain"
	apperrors "campcart/internal/errors"
	"campcart/internal/infrastructure/metrics"
)

type CartRepository interface {
	Load(ctx context.Context, cartID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Clear(ctx context.Context, cartID string) error
}

type AvailabilityChecker interface {
	CheckItem(ctx context.Context, item domain.LineItem) (availability.Verdict, error)
}

type PromoCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.PromoCode, error)
}

// CartService owns the line items of every cart. Mutations on one cart are
// serialized in process and each accepted change is persisted immediately.
type CartService struct {
	repo             CartRepository
	checker          AvailabilityChecker
	promoRepo        PromoCodeRepository
	logger           *zap.Logger
	maxRetryAttempts int
	now              func() time.Time
	locks            sync.Map
}

func NewCartService(
	repo CartRepository,
	checker AvailabilityChecker,
	promoRepo PromoCodeRepository,
	logger *zap.Logger,
	maxRetryAttempts int,
) *CartService {
	return &CartService{
		repo:             repo,
		checker:          checker,
		promoRepo:        promoRepo,
		logger:           logger,
		maxRetryAttempts: max(maxRetryAttempts, 1),
		now:              time.Now,
	}
}

func (s *CartService) lock(cartID string) func() {
	v, _ := s.locks.LoadOrStore(cartID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the stored cart, or an empty one when none exists.
func (s *CartService) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.repo.Load(ctx, cartID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return domain.NewCart(cartID), nil
		}
		return nil, fmt.Errorf("loading cart %s: %w", cartID, err)
	}
	return cart, nil
}

func (s *CartService) Totals(cart *domain.Cart) domain.Totals {
	return domain.ComputeTotals(cart.Items, cart.Promo)
}

// Add validates and prices the item, runs the advisory availability check
// for dated items and appends it to the cart.
func (s *CartService) Add(ctx context.Context, cartID string, item domain.LineItem) (*domain.Cart, error) {
	item = item.Clone()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Kind == domain.ItemKindCombo && item.Quantity == 0 {
		item.Quantity = 1
	}

	if err := item.NormalizeDates(); err != nil {
		return nil, validationFromDomain(err)
	}
	if err := item.Validate(); err != nil {
		return nil, validationFromDomain(err)
	}

	total, err := item.ComputeTotal()
	if err != nil {
		return nil, validationFromDomain(err)
	}
	item.TotalPrice = total

	if item.IsDated() {
		verdict, err := s.checker.CheckItem(ctx, item)
		switch {
		case err != nil:
			s.logger.Warn("availability check failed, accepting item",
				zap.String("cartId", cartID),
				zap.String("itemId", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.Error(err),
			)
		case !verdict.Bookable:
			return nil, apperrors.NewAvailabilityError(
				fmt.Sprintf("%s is not available on %s: %s", item.Name(), item.CheckIn, verdict.Reason),
				verdict.ServiceID,
				item.CheckIn.String(),
			)
		}
	}

	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.IndexOf(item.ID) >= 0 {
		return nil, apperrors.NewConflictError(fmt.Sprintf("item %s already in cart", item.ID))
	}

	cart.Items = append(cart.Items, item)
	if err := s.persist(ctx, cart, "add"); err != nil {
		return nil, err
	}

	s.logger.Info("item added to cart",
		zap.String("cartId", cartID),
		zap.String("itemId", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.Int64("totalPrice", item.TotalPrice),
	)
	return cart, nil
}

// UpdateQuantity rejects values outside the item's bounds and leaves the
// stored item untouched in that case.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domain.Cart, error) {
	return s.mutateItem(ctx, cartID, itemID, "update_quantity", func(item *domain.LineItem) error {
		lo, hi, err := item.QuantityBounds()
		if err != nil {
			return validationFromDomain(err)
		}
		if quantity < lo || quantity > hi {
			return apperrors.NewValidationError("quantity out of range", apperrors.ValidationDetail{
				Field:   "quantity",
				Message: fmt.Sprintf("quantity must be between %d and %d", lo, hi),
			})
		}
		item.Quantity = quantity
		return nil
	})
}

func (s *CartService) UpdateExtraPeople(ctx context.Context, cartID, itemID string, extra int) (*domain.Cart, error) {
	return s.mutateItem(ctx, cartID, itemID, "update_extra_people", func(item *domain.LineItem) error {
		maxExtra, err := item.MaxExtraPeople()
		if err != nil {
			return validationFromDomain(err)
		}
		if extra < 0 || extra > maxExtra {
			return apperrors.NewValidationError("extra people out of range", apperrors.ValidationDetail{
				Field:   "extraPeople",
				Message: fmt.Sprintf("extraPeople must be between 0 and %d", maxExtra),
			})
		}
		item.ExtraPeople = extra
		return nil
	})
}

func (s *CartService) mutateItem(ctx context.Context, cartID, itemID, operation string, mutate func(*domain.LineItem) error) (*domain.Cart, error) {
	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	idx := cart.IndexOf(itemID)
	if idx < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("item %s not in cart", itemID))
	}

	updated := cart.Items[idx].Clone()
	if err := mutate(&updated); err != nil {
		return nil, err
	}

	total, err := updated.ComputeTotal()
	if err != nil {
		return nil, validationFromDomain(err)
	}
	updated.TotalPrice = total
	cart.Items[idx] = updated

	if err := s.persist(ctx, cart, operation); err != nil {
		return nil, err
	}

	s.logger.Debug("cart item updated",
		zap.String("cartId", cartID),
		zap.String("itemId", itemID),
		zap.String("operation", operation),
		zap.Int("quantity", updated.Quantity),
		zap.Int("extraPeople", updated.ExtraPeople),
		zap.Int64("totalPrice", updated.TotalPrice),
	)
	return cart, nil
}

func (s *CartService) Remove(ctx context.Context, cartID, itemID string) (*domain.Cart, error) {
	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	idx := cart.IndexOf(itemID)
	if idx < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("item %s not in cart", itemID))
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	if err := s.persist(ctx, cart, "remove"); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, cartID string) error {
	unlock := s.lock(cartID)
	defer unlock()

	if err := s.repo.Clear(ctx, cartID); err != nil {
		return fmt.Errorf("clearing cart %s: %w", cartID, err)
	}
	metrics.CartMutations.WithLabelValues("clear").Inc()
	s.logger.Info("cart cleared", zap.String("cartId", cartID))
	return nil
}

// RemoveItems drops the given lines and keeps anything added since they
// were read. A cart left without lines is cleared.
func (s *CartService) RemoveItems(ctx context.Context, cartID string, itemIDs []string) error {
	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if _, ok := drop[item.ID]; !ok {
			kept = append(kept, item)
		}
	}
	removed := len(cart.Items) - len(kept)
	cart.Items = kept

	if cart.IsEmpty() {
		if err := s.repo.Clear(ctx, cartID); err != nil {
			return fmt.Errorf("clearing cart %s: %w", cartID, err)
		}
		metrics.CartMutations.WithLabelValues("clear").Inc()
	} else if err := s.persist(ctx, cart, "remove_items"); err != nil {
		return err
	}

	s.logger.Info("checked out lines removed from cart",
		zap.String("cartId", cartID),
		zap.Int("removed", removed),
		zap.Int("remaining", len(cart.Items)),
	)
	return nil
}

func (s *CartService) ApplyPromo(ctx context.Context, cartID, code string) (*domain.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.NewValidationError("promo code is required", apperrors.ValidationDetail{
			Field:   "code",
			Message: "code is required",
		})
	}

	promo, err := s.ValidatePromo(ctx, code)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	cart.Promo = &domain.AppliedPromo{Code: promo.Code, PercentOff: promo.PercentOff}

	if err := s.persist(ctx, cart, "apply_promo"); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemovePromo(ctx context.Context, cartID string) (*domain.Cart, error) {
	unlock := s.lock(cartID)
	defer unlock()

	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Promo == nil {
		return cart, nil
	}
	cart.Promo = nil

	if err := s.persist(ctx, cart, "remove_promo"); err != nil {
		return nil, err
	}
	return cart, nil
}

// ValidatePromo returns the promo when it exists and can be used now.
func (s *CartService) ValidatePromo(ctx context.Context, code string) (*domain.PromoCode, error) {
	promo, err := s.promoRepo.FindByCode(ctx, code)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, apperrors.NewValidationError("promo code is not valid", apperrors.ValidationDetail{
				Field:   "code",
				Message: fmt.Sprintf("promo code %s does not exist", code),
			})
		}
		return nil, fmt.Errorf("loading promo code: %w", err)
	}

	if !promo.Usable(s.now()) {
		return nil, apperrors.NewValidationError("promo code is not valid", apperrors.ValidationDetail{
			Field:   "code",
			Message: fmt.Sprintf("promo code %s is expired or inactive", code),
		})
	}
	return promo, nil
}

func (s *CartService) persist(ctx context.Context, cart *domain.Cart, operation string) error {
	cart.UpdatedAt = s.now().UTC()
	if err := s.saveWithRetry(ctx, cart); err != nil {
		return err
	}
	metrics.CartMutations.WithLabelValues(operation).Inc()
	return nil
}

func (s *CartService) saveWithRetry(ctx context.Context, cart *domain.Cart) error {
	maxAttempts := s.maxRetryAttempts
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.repo.Save(ctx, cart)
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return fmt.Errorf("saving cart %s: %w", cart.ID, err)
		}
		if attempt == maxAttempts {
			break
		}

		base := backoffs[min(attempt-1, len(backoffs)-1)]
		// ±20% jitter
		wait := base + time.Duration(float64(base)*(rand.Float64()*0.4-0.2))
		s.logger.Warn("deadlock detected, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.String("cartId", cart.ID),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

func validationFromDomain(err error) error {
	field := ""
	switch {
	case errors.Is(err, domain.ErrQuantityOutOfRange):
		field = "quantity"
	case errors.Is(err, domain.ErrExtraPeopleNotAllowed):
		field = "extraPeople"
	case errors.Is(err, domain.ErrDateRequired), errors.Is(err, domain.ErrInvalidDate):
		field = "checkIn"
	case errors.Is(err, domain.ErrInvalidDateRange):
		field = "checkOut"
	case errors.Is(err, domain.ErrRentalDaysRequired), errors.Is(err, domain.ErrRentalDaysOutOfRange):
		field = "rentalDays"
	case errors.Is(err, domain.ErrTotalOutOfRange):
		field = "totalPrice"
	case errors.Is(err, domain.ErrVariantMismatch), errors.Is(err, domain.ErrUnknownItemKind):
		field = "kind"
	default:
		return err
	}
	return apperrors.NewValidationError("invalid cart item", apperrors.ValidationDetail{
		Field:   field,
		Message: err.Error(),
	})
}
