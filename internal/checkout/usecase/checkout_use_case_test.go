package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campcart/internal/availability"
	cartrepo "campcart/internal/cart/repository"
	"campcart/internal/cart/service"
	"campcart/internal/checkout/guard"
	checkoutrepo "campcart/internal/checkout/repository"
	"campcart/internal/config"
	"campcart/internal/domain"
	"campcart/internal/dto"
	apperrors "campcart/internal/errors"
	"campcart/internal/gateway"
	promorepo "campcart/internal/promo/repository"
)

type mockAvailabilityGateway struct {
	ServiceAvailabilityFunc func(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error)
}

func (m *mockAvailabilityGateway) ServiceAvailability(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
	return m.ServiceAvailabilityFunc(ctx, serviceID, date)
}

type mockBookingGateway struct {
	ResolveCustomerIDFunc func(ctx context.Context, userID string) (int64, error)
	CreateBookingFunc     func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error)
	CreateGearOrderFunc   func(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error)
}

func (m *mockBookingGateway) ResolveCustomerID(ctx context.Context, userID string) (int64, error) {
	return m.ResolveCustomerIDFunc(ctx, userID)
}

func (m *mockBookingGateway) CreateBooking(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
	return m.CreateBookingFunc(ctx, customerID, req, idempotencyKey)
}

func (m *mockBookingGateway) CreateGearOrder(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error) {
	return m.CreateGearOrderFunc(ctx, req, idempotencyKey)
}

type mockPaymentInitiator struct {
	CreatePaymentFunc func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error)
}

func (m *mockPaymentInitiator) CreatePayment(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
	return m.CreatePaymentFunc(ctx, bookingID, method, idempotencyKey)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

type counters struct {
	mu           sync.Mutex
	availability int
	bookings     int
	gearOrders   int
	payments     int
}

func (c *counters) inc(n *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*n++
}

type fixture struct {
	uc        *CheckoutUseCase
	carts     *cartrepo.MemoryCartRepository
	cartSvc   *service.CartService
	records   *checkoutrepo.MemoryCheckoutRecordRepository
	guard     *guard.MemoryGuard
	avail     *mockAvailabilityGateway
	bookings  *mockBookingGateway
	payments  *mockPaymentInitiator
	publisher *recordingPublisher
	calls     *counters
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		carts:     cartrepo.NewMemoryCartRepository(),
		records:   checkoutrepo.NewMemoryCheckoutRecordRepository(),
		guard:     guard.NewMemoryGuard(0),
		publisher: &recordingPublisher{},
		calls:     &counters{},
	}

	f.avail = &mockAvailabilityGateway{
		ServiceAvailabilityFunc: func(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
			f.calls.inc(&f.calls.availability)
			return []dto.AvailabilityRecord{{Date: date.String(), TotalSlots: 5, BookedSlots: 1}}, nil
		},
	}
	f.bookings = &mockBookingGateway{
		ResolveCustomerIDFunc: func(ctx context.Context, userID string) (int64, error) {
			return 900, nil
		},
		CreateBookingFunc: func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
			f.calls.inc(&f.calls.bookings)
			return &domain.Booking{ID: 42, Status: domain.BookingStatusPending}, nil
		},
		CreateGearOrderFunc: func(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error) {
			f.calls.inc(&f.calls.gearOrders)
			return &domain.GearOrder{ID: 7, TotalPrice: req.TotalPrice}, nil
		},
	}
	f.payments = &mockPaymentInitiator{
		CreatePaymentFunc: func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
			f.calls.inc(&f.calls.payments)
			return &domain.PaymentIntent{RedirectURL: "https://pay.example.com/checkout/abc"}, nil
		},
	}

	promos := promorepo.NewMemoryPromoCodeRepository(
		domain.PromoCode{Code: "SUMMER10", PercentOff: 10, Active: true},
		domain.PromoCode{Code: "OLD", PercentOff: 20, Active: false},
	)
	checker := availability.NewChecker(f.avail, config.BreakerConfig{MaxRequests: 1, ConsecutiveFailures: 5}, zap.NewNop())
	f.cartSvc = service.NewCartService(f.carts, checker, promos, zap.NewNop(), 3)

	f.uc = NewCheckoutUseCase(f.cartSvc, checker, f.bookings, f.payments, f.records, f.guard, f.publisher, zap.NewNop(), "/login")
	return f
}

func (f *fixture) seed(t *testing.T, cartID string, promo *domain.AppliedPromo, items ...domain.LineItem) {
	t.Helper()
	cart := domain.NewCart(cartID)
	cart.Items = items
	cart.Promo = promo
	require.NoError(t, f.carts.Save(context.Background(), cart))
}

func (f *fixture) cartItems(t *testing.T, cartID string) int {
	t.Helper()
	cart, err := f.carts.Load(context.Background(), cartID)
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return 0
	}
	require.NoError(t, err)
	return len(cart.Items)
}

func siteLine() domain.LineItem {
	return domain.LineItem{
		ID:   "line-site",
		Kind: domain.ItemKindService,
		Service: &domain.ServiceRef{
			ID: 10, Name: "Lakeside tent site", Price: 50000,
			MinCapacity: 2, MaxCapacity: 4, ExtraPeopleEnabled: true, MaxExtraPeople: 2,
			ExtraPersonFee: 15000, MaxDurationDays: 2,
		},
		Quantity:   2,
		CheckIn:    "2025-06-01",
		CheckOut:   "2025-06-03",
		TotalPrice: 100000,
	}
}

func tentLine() domain.LineItem {
	return domain.LineItem{
		ID:         "line-tent",
		Kind:       domain.ItemKindEquipment,
		Equipment:  &domain.EquipmentRef{ID: 5, Name: "Tent", PricePerDay: 100000, Available: 3},
		Quantity:   2,
		RentalDays: 3,
		TotalPrice: 600000,
	}
}

func shopper() *domain.Identity {
	return &domain.Identity{UserID: "user-1", Email: "ana@example.com", Name: "Ana", Phone: "0900000000"}
}

func online(cartID string) SubmitInput {
	return SubmitInput{CartID: cartID, Identity: shopper(), PaymentMethod: domain.PaymentMethodOnlineGateway}
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateIdle, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureEmptyCart, result.Failure.Kind)
	assert.Equal(t, []State{StateIdle, StateValidating, StateIdle}, result.Trail)
	assert.Zero(t, f.calls.availability)
	assert.Zero(t, f.calls.bookings)
	assert.Zero(t, f.calls.gearOrders)
}

func TestSubmit_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	in := online("cart-1")
	in.Identity = nil
	result := f.uc.Submit(context.Background(), in)

	assert.Equal(t, StateIdle, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureUnauthenticated, result.Failure.Kind)
	assert.Equal(t, "/login?returnTo=%2Fcheckout%3Fcart%3Dcart-1", result.LoginRedirect)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))
	assert.Zero(t, f.calls.bookings)

	// Signing in and coming back resumes with the same cart.
	var sent dto.BookingRequest
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		sent = req
		return &domain.Booking{ID: 42}, nil
	}

	result = f.uc.Submit(context.Background(), online("cart-1"))

	require.True(t, result.Succeeded(), "%+v", result.Failure)
	assert.Empty(t, result.LoginRedirect)
	assert.Equal(t, 1, f.calls.bookings)
	require.Len(t, sent.Services, 1)
	assert.Equal(t, int64(10), sent.Services[0].ServiceID)
	assert.Equal(t, "2025-06-01", sent.Services[0].CheckInDate)
	assert.Equal(t, int64(100000), sent.Services[0].TotalPrice)
	assert.Equal(t, 0, f.cartItems(t, "cart-1"))
}

func TestSubmit_PaymentMethodRequired(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	in := online("cart-1")
	in.PaymentMethod = ""
	result := f.uc.Submit(context.Background(), in)

	assert.Equal(t, StateIdle, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailurePaymentMethodRequired, result.Failure.Kind)
	assert.Zero(t, f.calls.bookings)
}

func TestSubmit_InProgress(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	_, ok, err := f.guard.Acquire(context.Background(), "cart-1")
	require.NoError(t, err)
	require.True(t, ok)

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateIdle, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureInProgress, result.Failure.Kind)
	assert.Zero(t, f.calls.bookings)
}

func TestSubmit_ServiceFullyBooked(t *testing.T) {
	f := newFixture(t)
	f.avail.ServiceAvailabilityFunc = func(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
		return []dto.AvailabilityRecord{{Date: "2025-06-01", TotalSlots: 5, BookedSlots: 5}}, nil
	}
	f.seed(t, "cart-1", nil, siteLine())

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureAvailability, result.Failure.Kind)
	assert.False(t, result.Failure.Retryable)
	assert.Contains(t, result.Failure.Message, "Lakeside tent site")
	assert.Zero(t, f.calls.bookings)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))
	assert.Equal(t, []State{StateIdle, StateValidating, StateFailed}, result.Trail)

	_, ok, _ := f.guard.Acquire(context.Background(), "cart-1")
	assert.True(t, ok, "guard must be released after a failed attempt")
}

func TestSubmit_AvailabilityUnknown(t *testing.T) {
	f := newFixture(t)
	f.avail.ServiceAvailabilityFunc = func(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
		return nil, &gateway.RemoteError{Kind: gateway.KindNetwork, Op: "service availability", Err: errors.New("connection refused")}
	}
	f.seed(t, "cart-1", nil, siteLine())

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureNetwork, result.Failure.Kind)
	assert.Equal(t, gateway.KindNetwork, result.Failure.Cause)
	assert.True(t, result.Failure.Retryable)
	assert.Zero(t, f.calls.bookings)
}

func TestSubmit_GearOnlyPayOnArrival(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, tentLine())

	var sent dto.GearOrderRequest
	f.bookings.CreateGearOrderFunc = func(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error) {
		f.calls.inc(&f.calls.gearOrders)
		sent = req
		assert.Contains(t, idempotencyKey, ":gear-order")
		return &domain.GearOrder{ID: 7, TotalPrice: 600000}, nil
	}

	in := online("cart-1")
	in.PaymentMethod = domain.PaymentMethodPayOnArrival
	result := f.uc.Submit(context.Background(), in)

	require.True(t, result.Succeeded(), "%+v", result.Failure)
	assert.Equal(t, domain.ReservationKindGearOrder, result.ReservationKind)
	assert.Equal(t, int64(7), result.ReservationID)
	assert.Equal(t, "/orders/gear/7/confirmation", result.ConfirmationPath)
	assert.Equal(t, []State{StateIdle, StateValidating, StateCreatingReservation, StateComplete}, result.Trail)

	assert.Zero(t, f.calls.bookings)
	assert.Zero(t, f.calls.availability)
	assert.Zero(t, f.calls.payments)
	assert.Equal(t, int64(600000), sent.TotalPrice)
	assert.Equal(t, "user-1", sent.UserID)
	require.Len(t, sent.Items, 1)
	assert.Equal(t, dto.GearOrderLine{ItemType: "GEAR", ItemID: 5, Quantity: 2, UnitPrice: 100000, TotalPrice: 600000, RentalDays: 3}, sent.Items[0])

	assert.Equal(t, 0, f.cartItems(t, "cart-1"))
	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusConfirmed, record.Status)
	assert.Equal(t, []string{EventReservationCreated, EventCompleted}, f.publisher.keys)
}

func TestSubmit_BookingPayOnArrival(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	in := online("cart-1")
	in.PaymentMethod = domain.PaymentMethodPayOnArrival
	result := f.uc.Submit(context.Background(), in)

	require.True(t, result.Succeeded())
	assert.Equal(t, "/bookings/42/confirmation", result.ConfirmationPath)
	assert.Empty(t, result.RedirectURL)
	assert.Zero(t, f.calls.payments)
}

func TestSubmit_OnlinePaymentRedirect(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", &domain.AppliedPromo{Code: "SUMMER10", PercentOff: 10}, siteLine(), tentLine())

	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		assert.Equal(t, int64(900), customerID)
		assert.Equal(t, "SUMMER10", req.PromoCode)
		require.Len(t, req.Services, 1)
		assert.Equal(t, 2, req.Services[0].People)
		assert.Equal(t, "2025-06-03", req.Services[0].CheckOutDate)
		require.Len(t, req.Gear, 1)
		assert.Equal(t, int64(5), req.Gear[0].ItemID)

		assert.Equal(t, 2, f.cartItems(t, "cart-1"), "cart must be intact until the reservation exists")
		return &domain.Booking{ID: 42, TotalPrice: 630000}, nil
	}

	result := f.uc.Submit(context.Background(), online("cart-1"))

	require.True(t, result.Succeeded(), "%+v", result.Failure)
	assert.Equal(t, domain.ReservationKindBooking, result.ReservationKind)
	assert.Equal(t, "https://pay.example.com/checkout/abc", result.RedirectURL)
	assert.Equal(t, int64(630000), result.ServerTotal)
	assert.Equal(t, []State{StateIdle, StateValidating, StateCreatingReservation, StateInitiatingPayment, StateComplete}, result.Trail)
	assert.Equal(t, 0, f.cartItems(t, "cart-1"))

	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPaymentRedirected, record.Status)
}

func TestSubmit_ReservationFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		return nil, &gateway.RemoteError{Kind: gateway.KindValidation, Op: "create booking", StatusCode: 400, Message: "date is closed"}
	}

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureReservation, result.Failure.Kind)
	assert.Equal(t, gateway.KindValidation, result.Failure.Cause)
	assert.False(t, result.Failure.Retryable)
	assert.Zero(t, result.Failure.ReservationID)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))
	assert.Zero(t, f.calls.payments)

	_, err := f.records.FindByCartID(context.Background(), "cart-1")
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestSubmit_PaymentInitiationFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())
	f.payments.CreatePaymentFunc = func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
		assert.Equal(t, int64(42), bookingID)
		return nil, &gateway.RemoteError{Kind: gateway.KindNetwork, Op: "create payment", Err: errors.New("timeout")}
	}

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailurePaymentInitiation, result.Failure.Kind)
	assert.Equal(t, gateway.KindNetwork, result.Failure.Cause)
	assert.True(t, result.Failure.Retryable)
	assert.Equal(t, int64(42), result.Failure.ReservationID)
	assert.Equal(t, "/account/bookings/42", result.Failure.HistoryPath)
	assert.Equal(t, int64(42), result.ReservationID)
	assert.Equal(t, 0, f.cartItems(t, "cart-1"))

	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), record.ReservationID)
	assert.Equal(t, domain.RecordStatusPaymentFailed, record.Status)
	assert.Equal(t, []string{EventReservationCreated, EventPaymentInitiationFailed}, f.publisher.keys)
}

func TestSubmit_InvalidPromoAtCheckout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", &domain.AppliedPromo{Code: "OLD", PercentOff: 20}, siteLine())

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailurePricing, result.Failure.Kind)
	assert.False(t, result.Failure.Retryable)
	assert.Zero(t, f.calls.bookings)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))
}

func TestSubmit_AbandonedDuringReservation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		require.NoError(t, f.uc.Abandon(ctx, "cart-1"))
		return &domain.Booking{ID: 42}, nil
	}

	result := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureAbandoned, result.Failure.Kind)
	assert.Equal(t, int64(42), result.Failure.ReservationID)
	assert.Equal(t, "/account/bookings/42", result.Failure.HistoryPath)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"), "an abandoned attempt must not clear the cart")
	assert.Zero(t, f.calls.payments)

	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusAbandoned, record.Status)
}

func TestSubmit_AbandonedReservationBlocksResubmit(t *testing.T) {
	f := newFixture(t)
	f.uc.now = func() time.Time { return time.Now().Add(-time.Minute) }
	f.seed(t, "cart-1", nil, siteLine())
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		require.NoError(t, f.uc.Abandon(ctx, "cart-1"))
		return &domain.Booking{ID: 42}, nil
	}

	first := f.uc.Submit(context.Background(), online("cart-1"))
	require.NotNil(t, first.Failure)
	require.Equal(t, FailureAbandoned, first.Failure.Kind)

	second := f.uc.Submit(context.Background(), online("cart-1"))

	assert.Equal(t, StateIdle, second.State)
	require.NotNil(t, second.Failure)
	assert.Equal(t, FailureReservationPending, second.Failure.Kind)
	assert.Equal(t, int64(42), second.Failure.ReservationID)
	assert.Equal(t, "/account/bookings/42", second.Failure.HistoryPath)
	assert.Equal(t, 1, f.calls.bookings)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))

	token, ok, err := f.guard.Acquire(context.Background(), "cart-1")
	require.NoError(t, err)
	require.True(t, ok, "guard must be released when the attempt is refused")
	require.NoError(t, f.guard.Release(context.Background(), "cart-1", token))

	// Editing the cart starts a new order.
	_, err = f.cartSvc.UpdateQuantity(context.Background(), "cart-1", "line-site", 3)
	require.NoError(t, err)
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		return &domain.Booking{ID: 43}, nil
	}

	third := f.uc.Submit(context.Background(), online("cart-1"))

	require.True(t, third.Succeeded(), "%+v", third.Failure)
	assert.Equal(t, int64(43), third.ReservationID)
	assert.Equal(t, 2, f.calls.bookings)
}

func TestSubmit_FailedPaymentBlocksResubmit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())
	f.payments.CreatePaymentFunc = func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
		return nil, &gateway.RemoteError{Kind: gateway.KindServer, Op: "create payment", StatusCode: 502}
	}
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		// The shopper keeps shopping in another tab.
		_, err := f.cartSvc.Add(context.Background(), "cart-1", tentLine())
		require.NoError(t, err)
		return &domain.Booking{ID: 42}, nil
	}

	first := f.uc.Submit(context.Background(), online("cart-1"))
	require.NotNil(t, first.Failure)
	require.Equal(t, FailurePaymentInitiation, first.Failure.Kind)

	second := f.uc.Submit(context.Background(), online("cart-1"))

	require.NotNil(t, second.Failure)
	assert.Equal(t, FailureReservationPending, second.Failure.Kind)
	assert.Equal(t, int64(42), second.Failure.ReservationID)
	assert.Equal(t, 1, f.calls.bookings)
	assert.Zero(t, f.calls.gearOrders)
}

func TestSubmit_LinesAddedDuringReservationStayInCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	var sent dto.BookingRequest
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		sent = req
		_, err := f.cartSvc.Add(context.Background(), "cart-1", tentLine())
		require.NoError(t, err)
		return &domain.Booking{ID: 42}, nil
	}

	result := f.uc.Submit(context.Background(), online("cart-1"))

	require.True(t, result.Succeeded(), "%+v", result.Failure)
	assert.Empty(t, sent.Gear)

	cart, err := f.carts.Load(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "line-tent", cart.Items[0].ID)
}

func TestSubmit_CallerGoneAfterReservation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		cancel()
		assert.NoError(t, ctx.Err(), "the create call must outlive the request")
		return &domain.Booking{ID: 42}, nil
	}
	f.payments.CreatePaymentFunc = func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
		f.calls.inc(&f.calls.payments)
		assert.NoError(t, ctx.Err())
		return &domain.PaymentIntent{RedirectURL: "https://pay.example.com/checkout/abc"}, nil
	}

	first := f.uc.Submit(ctx, online("cart-1"))

	require.True(t, first.Succeeded(), "%+v", first.Failure)
	assert.Equal(t, int64(42), first.ReservationID)
	assert.Equal(t, 1, f.calls.payments)
	assert.Equal(t, 0, f.cartItems(t, "cart-1"))

	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPaymentRedirected, record.Status)

	second := f.uc.Submit(context.Background(), online("cart-1"))

	require.NotNil(t, second.Failure)
	assert.Equal(t, FailureEmptyCart, second.Failure.Kind)
	assert.Equal(t, 1, f.calls.bookings)
}

func TestSubmit_CancelledContextBeforeReservation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, tentLine())

	ctx, cancel := context.WithCancel(context.Background())
	f.bookings.CreateGearOrderFunc = func(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error) {
		f.calls.inc(&f.calls.gearOrders)
		return &domain.GearOrder{ID: 7}, nil
	}
	cancel()

	result := f.uc.Submit(ctx, online("cart-1"))

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureAbandoned, result.Failure.Kind)
	assert.Zero(t, f.calls.gearOrders)
	assert.Equal(t, 1, f.cartItems(t, "cart-1"))
}

func TestSubmit_ConcurrentAttemptsReserveOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	release := make(chan struct{})
	entered := make(chan struct{})
	f.bookings.CreateBookingFunc = func(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
		f.calls.inc(&f.calls.bookings)
		close(entered)
		<-release
		return &domain.Booking{ID: 42}, nil
	}

	done := make(chan *Result)
	go func() { done <- f.uc.Submit(context.Background(), online("cart-1")) }()

	<-entered
	second := f.uc.Submit(context.Background(), online("cart-1"))
	close(release)
	first := <-done

	require.NotNil(t, second.Failure)
	assert.Equal(t, FailureInProgress, second.Failure.Kind)
	assert.True(t, first.Succeeded())
	assert.Equal(t, 1, f.calls.bookings)
}

func TestResumePayment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, siteLine())

	failing := true
	f.payments.CreatePaymentFunc = func(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
		assert.Equal(t, int64(42), bookingID)
		if failing {
			return nil, &gateway.RemoteError{Kind: gateway.KindServer, Op: "create payment", StatusCode: 502}
		}
		return &domain.PaymentIntent{RedirectURL: "https://pay.example.com/retry"}, nil
	}

	first := f.uc.Submit(context.Background(), online("cart-1"))
	require.NotNil(t, first.Failure)
	require.Equal(t, FailurePaymentInitiation, first.Failure.Kind)

	_, err := f.uc.ResumePayment(context.Background(), "cart-1", &domain.Identity{UserID: "someone-else"})
	_, ok := apperrors.IsForbiddenError(err)
	assert.True(t, ok)

	_, err = f.uc.ResumePayment(context.Background(), "cart-1", nil)
	_, ok = apperrors.IsForbiddenError(err)
	assert.True(t, ok)

	failing = false
	result, err := f.uc.ResumePayment(context.Background(), "cart-1", shopper())
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "https://pay.example.com/retry", result.RedirectURL)
	assert.Equal(t, int64(42), result.ReservationID)

	record, err := f.records.FindByCartID(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPaymentRedirected, record.Status)

	_, err = f.uc.ResumePayment(context.Background(), "cart-1", shopper())
	_, ok = apperrors.IsConflictError(err)
	assert.True(t, ok)
}

func TestResumePayment_NoRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ResumePayment(context.Background(), "cart-1", shopper())
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestLatestRecord(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cart-1", nil, tentLine())

	_, err := f.uc.LatestRecord(context.Background(), "cart-1")
	_, ok := apperrors.IsNotFoundError(err)
	require.True(t, ok)

	result := f.uc.Submit(context.Background(), online("cart-1"))
	require.True(t, result.Succeeded())

	record, err := f.uc.LatestRecord(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, result.AttemptID, record.AttemptID)
	assert.Equal(t, int64(7), record.ReservationID)
}
