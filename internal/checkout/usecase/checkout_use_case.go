package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"campcart/internal/availability"
	"campcart/internal/domain"
	"campcart/internal/dto"
	apperrors "campcart/internal/errors"
	"campcart/internal/infrastructure/metrics"
)

type CartStore interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	RemoveItems(ctx context.Context, cartID string, itemIDs []string) error
	ValidatePromo(ctx context.Context, code string) (*domain.PromoCode, error)
}

type AvailabilityChecker interface {
	CheckItem(ctx context.Context, item domain.LineItem) (availability.Verdict, error)
}

type BookingGateway interface {
	ResolveCustomerID(ctx context.Context, userID string) (int64, error)
	CreateBooking(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error)
	CreateGearOrder(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error)
}

type PaymentInitiator interface {
	CreatePayment(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error)
}

type CheckoutRecordRepository interface {
	Save(ctx context.Context, record *domain.CheckoutRecord) error
	FindByCartID(ctx context.Context, cartID string) (*domain.CheckoutRecord, error)
	UpdateStatus(ctx context.Context, cartID, attemptID, status string) error
}

// InFlightGuard allows one checkout attempt per cart. A token stops being
// current when it is released or the cart's attempt is invalidated.
type InFlightGuard interface {
	Acquire(ctx context.Context, cartID string) (string, bool, error)
	IsCurrent(ctx context.Context, cartID, token string) (bool, error)
	Release(ctx context.Context, cartID, token string) error
	Invalidate(ctx context.Context, cartID string) error
}

type SubmitInput struct {
	CartID        string
	Identity      *domain.Identity
	PaymentMethod domain.PaymentMethod
	Note          string
	// ClientTotal is the total the shopper saw, if the client sent one.
	ClientTotal *int64
}

type CheckoutUseCase struct {
	carts     CartStore
	checker   AvailabilityChecker
	bookings  BookingGateway
	payments  PaymentInitiator
	records   CheckoutRecordRepository
	guard     InFlightGuard
	publisher EventPublisher
	logger    *zap.Logger
	loginPath string
	tracer    trace.Tracer
	now       func() time.Time
}

func NewCheckoutUseCase(
	carts CartStore,
	checker AvailabilityChecker,
	bookings BookingGateway,
	payments PaymentInitiator,
	records CheckoutRecordRepository,
	guard InFlightGuard,
	publisher EventPublisher,
	logger *zap.Logger,
	loginPath string,
) *CheckoutUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &CheckoutUseCase{
		carts:     carts,
		checker:   checker,
		bookings:  bookings,
		payments:  payments,
		records:   records,
		guard:     guard,
		publisher: publisher,
		logger:    logger,
		loginPath: loginPath,
		tracer:    otel.Tracer("campcart/checkout"),
		now:       time.Now,
	}
}

// attempt carries the state of one Submit call.
type attempt struct {
	uc      *CheckoutUseCase
	in      SubmitInput
	id      string
	logger  *zap.Logger
	m       *machine
	token   string
	result  *Result
	kind    domain.ReservationKind
	resID   int64
	created bool
}

// Submit runs one checkout attempt to IDLE, COMPLETE or FAILED. It never
// returns an error; every outcome is described by the Result.
func (uc *CheckoutUseCase) Submit(ctx context.Context, in SubmitInput) *Result {
	a := &attempt{
		uc:     uc,
		in:     in,
		id:     uuid.NewString(),
		m:      newMachine(),
		result: &Result{},
	}
	a.logger = uc.logger.With(zap.String("cartId", in.CartID), zap.String("attemptId", a.id))
	a.result.AttemptID = a.id

	ctx, span := uc.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("cart.id", in.CartID),
		attribute.String("checkout.attempt_id", a.id),
		attribute.String("checkout.payment_method", string(in.PaymentMethod)),
	))
	defer span.End()

	a.logger.Info("checkout started", zap.String("paymentMethod", string(in.PaymentMethod)))

	a.run(ctx)

	a.result.State = a.m.state
	a.result.Trail = append([]State(nil), a.m.trail...)
	metrics.CheckoutAttempts.WithLabelValues(a.result.outcome()).Inc()

	if a.result.Failure != nil {
		span.SetStatus(codes.Error, string(a.result.Failure.Kind))
		a.logger.Info("checkout finished",
			zap.String("state", string(a.result.State)),
			zap.String("failure", string(a.result.Failure.Kind)),
			zap.String("reason", a.result.Failure.Message),
		)
	} else {
		a.logger.Info("checkout finished", zap.String("state", string(a.result.State)), zap.Int64("reservationId", a.result.ReservationID))
	}
	return a.result
}

func (a *attempt) run(ctx context.Context) {
	a.move(StateValidating)

	cart, ok := a.validate(ctx)
	if !ok {
		return
	}
	defer a.releaseGuard(ctx)

	if ok := a.revalidate(ctx, cart); !ok {
		return
	}

	a.move(StateCreatingReservation)
	if ok := a.reserve(ctx, cart); !ok {
		return
	}

	// Once the reservation exists only Abandon stops the attempt.
	ctx = context.WithoutCancel(ctx)

	switch a.in.PaymentMethod {
	case domain.PaymentMethodPayOnArrival:
		a.completeOnArrival(ctx)
	case domain.PaymentMethodOnlineGateway:
		a.move(StateInitiatingPayment)
		a.initiatePayment(ctx)
	default:
		a.fail(FailurePaymentInitiation, fmt.Sprintf("unsupported payment method %q", a.in.PaymentMethod), nil)
	}
}

func (a *attempt) move(next State) {
	if err := a.m.to(next); err != nil {
		a.logger.DPanic("illegal checkout transition", zap.Error(err))
		a.m.state = StateFailed
		a.m.trail = append(a.m.trail, StateFailed)
	}
}

// backToIdle aborts a precondition check.
func (a *attempt) backToIdle(kind FailureKind, message string) {
	a.move(StateIdle)
	a.result.Failure = &Failure{Kind: kind, Message: message, Retryable: kind == FailureInProgress}
}

func (a *attempt) fail(kind FailureKind, message string, err error) {
	cause, retryable := causeOf(err)
	switch kind {
	case FailureAvailability, FailurePricing:
		retryable = false
	case FailureAbandoned:
		retryable = true
	}

	f := &Failure{Kind: kind, Message: message, Cause: cause, Retryable: retryable}
	if a.created {
		f.ReservationID = a.resID
		f.HistoryPath = domain.HistoryPath(a.kind, a.resID)
	}
	a.result.Failure = f
	a.move(StateFailed)

	fields := []zap.Field{zap.String("failure", string(kind)), zap.String("reason", message)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if a.created {
		fields = append(fields, zap.Int64("reservationId", a.resID))
	}
	a.logger.Warn("checkout failed", fields...)
}

func (a *attempt) step(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := a.uc.tracer.Start(ctx, "checkout."+name)
	return ctx, func() {
		metrics.CheckoutStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// validate checks the synchronous preconditions and takes the in-flight
// guard. The returned cart is the snapshot the attempt works on.
func (a *attempt) validate(ctx context.Context) (*domain.Cart, bool) {
	ctx, end := a.step(ctx, "validate")
	defer end()

	cart, err := a.uc.carts.Get(ctx, a.in.CartID)
	if err != nil {
		a.fail(FailureReservation, "the cart could not be loaded", err)
		return nil, false
	}
	if cart.IsEmpty() {
		a.backToIdle(FailureEmptyCart, "the cart is empty")
		return nil, false
	}
	if a.in.Identity == nil || a.in.Identity.UserID == "" {
		a.result.LoginRedirect = a.uc.loginRedirect(a.in.CartID)
		a.backToIdle(FailureUnauthenticated, "sign in to complete the checkout")
		return nil, false
	}
	if !a.in.PaymentMethod.IsValid() {
		a.backToIdle(FailurePaymentMethodRequired, "select a payment method")
		return nil, false
	}

	token, acquired, err := a.uc.guard.Acquire(ctx, a.in.CartID)
	if err != nil {
		a.fail(FailureReservation, "the checkout could not be started", err)
		return nil, false
	}
	if !acquired {
		a.backToIdle(FailureInProgress, "a checkout for this cart is already in progress")
		return nil, false
	}
	a.token = token

	// Reload under the guard: a finished attempt may have cleared the cart.
	cart, err = a.uc.carts.Get(ctx, a.in.CartID)
	if err != nil {
		a.releaseGuard(ctx)
		a.fail(FailureReservation, "the cart could not be loaded", err)
		return nil, false
	}
	if cart.IsEmpty() {
		a.releaseGuard(ctx)
		a.backToIdle(FailureEmptyCart, "the cart is empty")
		return nil, false
	}
	if ok := a.checkPending(ctx, cart); !ok {
		a.releaseGuard(ctx)
		return nil, false
	}

	return cart.Clone(), true
}

// checkPending refuses a new reservation while the previous one for the
// same cart is still open, unless the cart was edited after it.
func (a *attempt) checkPending(ctx context.Context, cart *domain.Cart) bool {
	record, err := a.uc.records.FindByCartID(ctx, a.in.CartID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return true
		}
		a.fail(FailureReservation, "the previous checkout could not be verified", err)
		return false
	}
	if !record.Open() || cart.UpdatedAt.After(record.UpdatedAt) {
		return true
	}

	a.move(StateIdle)
	a.result.ReservationKind = record.Kind
	a.result.Failure = &Failure{
		Kind:          FailureReservationPending,
		Message:       fmt.Sprintf("reservation %d for this cart is still open", record.ReservationID),
		ReservationID: record.ReservationID,
		HistoryPath:   record.HistoryPath(),
	}
	return false
}

func (uc *CheckoutUseCase) loginRedirect(cartID string) string {
	returnTo := "/checkout?cart=" + url.QueryEscape(cartID)
	return uc.loginPath + "?returnTo=" + url.QueryEscape(returnTo)
}

func (a *attempt) releaseGuard(ctx context.Context) {
	if a.token == "" {
		return
	}
	if err := a.uc.guard.Release(context.WithoutCancel(ctx), a.in.CartID, a.token); err != nil {
		a.logger.Warn("failed to release checkout guard", zap.Error(err))
	}
	a.token = ""
}

// stale reports whether the attempt was abandoned. Before the reservation a
// caller that went away counts as abandonment too.
func (a *attempt) stale(ctx context.Context) bool {
	if !a.created && ctx.Err() != nil {
		return true
	}
	current, err := a.uc.guard.IsCurrent(context.WithoutCancel(ctx), a.in.CartID, a.token)
	if err != nil {
		a.logger.Warn("could not verify checkout guard", zap.Error(err))
		return false
	}
	return !current
}

// revalidate re-checks promo and availability against the server before
// anything is written.
func (a *attempt) revalidate(ctx context.Context, cart *domain.Cart) bool {
	ctx, end := a.step(ctx, "revalidate")
	defer end()

	if cart.Promo != nil {
		promo, err := a.uc.carts.ValidatePromo(ctx, cart.Promo.Code)
		if err != nil {
			if _, ok := apperrors.IsValidationError(err); ok {
				a.fail(FailurePricing, fmt.Sprintf("promo code %s is no longer valid", cart.Promo.Code), nil)
				return false
			}
			a.fail(FailurePricing, "the promo code could not be verified", err)
			a.result.Failure.Retryable = true
			return false
		}
		if promo.PercentOff != cart.Promo.PercentOff {
			a.logger.Warn("promo discount changed since it was applied",
				zap.String("code", promo.Code),
				zap.Int("applied", cart.Promo.PercentOff),
				zap.Int("current", promo.PercentOff),
			)
			cart.Promo.PercentOff = promo.PercentOff
		}
	}

	for _, item := range cart.Items {
		if !item.IsDated() {
			continue
		}
		verdict, err := a.uc.checker.CheckItem(ctx, item)
		if err != nil {
			a.fail(FailureNetwork, "availability could not be verified, try again", err)
			return false
		}
		if !verdict.Bookable {
			msg := fmt.Sprintf("%s is no longer available on %s", item.Name(), item.CheckIn)
			if verdict.Reason != "" {
				msg += " (" + verdict.Reason + ")"
			}
			a.fail(FailureAvailability, msg, nil)
			return false
		}
	}

	if a.stale(ctx) {
		a.fail(FailureAbandoned, "the checkout was abandoned", nil)
		return false
	}
	return true
}

func (a *attempt) key(step string) string {
	return a.id + ":" + step
}

// reserve creates the booking or gear order. The create call is not
// cancelled with the request. On success the breadcrumb is written and only
// then are the reserved lines removed from the cart.
func (a *attempt) reserve(ctx context.Context, cart *domain.Cart) bool {
	ctx, end := a.step(ctx, "reserve")
	defer end()

	identity := a.in.Identity
	items := cart.Items
	totals := domain.ComputeTotals(items, cart.Promo)
	a.kind = reservationKind(items)
	a.result.ReservationKind = a.kind

	var serverTotal int64
	switch a.kind {
	case domain.ReservationKindBooking:
		req, err := buildBookingRequest(items, a.in.Note, cart.Promo)
		if err != nil {
			a.fail(FailureReservation, "the cart contains an invalid line", err)
			return false
		}
		customerID, err := a.uc.bookings.ResolveCustomerID(ctx, identity.UserID)
		if err != nil {
			a.fail(FailureReservation, "the customer account could not be resolved", err)
			return false
		}
		booking, err := a.uc.bookings.CreateBooking(context.WithoutCancel(ctx), customerID, req, a.key("booking"))
		if err != nil {
			a.fail(FailureReservation, "the booking could not be created", err)
			return false
		}
		a.resID, serverTotal = booking.ID, booking.TotalPrice
	case domain.ReservationKindGearOrder:
		req, err := buildGearOrderRequest(identity, items, totals, cart.Promo)
		if err != nil {
			a.fail(FailureReservation, "the cart contains an invalid line", err)
			return false
		}
		order, err := a.uc.bookings.CreateGearOrder(context.WithoutCancel(ctx), req, a.key("gear-order"))
		if err != nil {
			a.fail(FailureReservation, "the gear order could not be created", err)
			return false
		}
		a.resID, serverTotal = order.ID, order.TotalPrice
	default:
		a.fail(FailureReservation, fmt.Sprintf("unknown reservation kind %q", a.kind), nil)
		return false
	}

	a.created = true
	a.result.ReservationID = a.resID
	a.result.ServerTotal = serverTotal
	a.logger.Info("reservation created",
		zap.String("kind", string(a.kind)),
		zap.Int64("reservationId", a.resID),
		zap.Int64("serverTotal", serverTotal),
	)
	a.checkTotals(totals.Total, serverTotal)

	now := a.uc.now().UTC()
	record := &domain.CheckoutRecord{
		CartID:        a.in.CartID,
		AttemptID:     a.id,
		UserID:        identity.UserID,
		Kind:          a.kind,
		ReservationID: a.resID,
		PaymentMethod: a.in.PaymentMethod,
		Status:        domain.RecordStatusReserved,
		ServerTotal:   serverTotal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if a.stale(ctx) {
		record.Status = domain.RecordStatusAbandoned
		a.saveRecord(ctx, record)
		a.uc.publish(ctx, EventAbandonedWithReservation, record, a.logger)
		a.fail(FailureAbandoned, "the checkout was abandoned after the reservation was created", nil)
		return false
	}

	a.saveRecord(ctx, record)
	a.uc.publish(ctx, EventReservationCreated, record, a.logger)

	reserved := make([]string, len(items))
	for i, item := range items {
		reserved[i] = item.ID
	}
	if err := a.uc.carts.RemoveItems(context.WithoutCancel(ctx), a.in.CartID, reserved); err != nil {
		a.logger.Error("failed to remove reserved lines from cart", zap.Int64("reservationId", a.resID), zap.Error(err))
	}
	return true
}

func (a *attempt) saveRecord(ctx context.Context, record *domain.CheckoutRecord) {
	if err := a.uc.records.Save(context.WithoutCancel(ctx), record); err != nil {
		a.logger.Error("failed to save checkout record",
			zap.Int64("reservationId", record.ReservationID),
			zap.String("status", record.Status),
			zap.Error(err),
		)
	}
}

func (a *attempt) updateRecord(ctx context.Context, status string) *domain.CheckoutRecord {
	if err := a.uc.records.UpdateStatus(context.WithoutCancel(ctx), a.in.CartID, a.id, status); err != nil {
		a.logger.Error("failed to update checkout record", zap.String("status", status), zap.Error(err))
	}
	return &domain.CheckoutRecord{
		CartID:        a.in.CartID,
		AttemptID:     a.id,
		UserID:        a.in.Identity.UserID,
		Kind:          a.kind,
		ReservationID: a.resID,
		PaymentMethod: a.in.PaymentMethod,
		Status:        status,
		ServerTotal:   a.result.ServerTotal,
	}
}

func (a *attempt) checkTotals(local, server int64) {
	if server == 0 {
		return
	}
	if server != local {
		metrics.TotalMismatches.Inc()
		a.logger.Warn("server total differs from cart total",
			zap.Int64("cartTotal", local),
			zap.Int64("serverTotal", server),
		)
	}
	if a.in.ClientTotal != nil && *a.in.ClientTotal != server {
		a.logger.Warn("server total differs from the total shown to the client",
			zap.Int64("clientTotal", *a.in.ClientTotal),
			zap.Int64("serverTotal", server),
		)
	}
}

func (a *attempt) completeOnArrival(ctx context.Context) {
	record := a.updateRecord(ctx, domain.RecordStatusConfirmed)
	a.move(StateComplete)
	a.result.ConfirmationPath = domain.ConfirmationPath(a.kind, a.resID)
	a.uc.publish(ctx, EventCompleted, record, a.logger)
}

func (a *attempt) initiatePayment(ctx context.Context) {
	stepCtx, end := a.step(ctx, "payment")
	defer end()

	intent, err := a.uc.payments.CreatePayment(stepCtx, a.resID, a.in.PaymentMethod, a.key("payment"))
	if err != nil {
		record := a.updateRecord(ctx, domain.RecordStatusPaymentFailed)
		a.uc.publish(ctx, EventPaymentInitiationFailed, record, a.logger)
		a.fail(FailurePaymentInitiation, "the reservation was created but the payment could not be started", err)
		a.result.Failure.Retryable = true
		return
	}

	if a.stale(ctx) {
		record := a.updateRecord(ctx, domain.RecordStatusAbandoned)
		a.uc.publish(ctx, EventAbandonedWithReservation, record, a.logger)
		a.fail(FailureAbandoned, "the checkout was abandoned before the payment redirect", nil)
		return
	}

	record := a.updateRecord(ctx, domain.RecordStatusPaymentRedirected)
	a.move(StateComplete)
	a.result.RedirectURL = intent.RedirectURL
	a.uc.publish(ctx, EventCompleted, record, a.logger)
}

// Abandon invalidates the cart's in-flight attempt. The attempt finishes
// its current remote call, then stops without clearing the cart or
// starting a payment.
func (uc *CheckoutUseCase) Abandon(ctx context.Context, cartID string) error {
	if err := uc.guard.Invalidate(ctx, cartID); err != nil {
		return fmt.Errorf("abandoning checkout for cart %s: %w", cartID, err)
	}
	uc.logger.Info("checkout abandoned", zap.String("cartId", cartID))
	return nil
}

// LatestRecord returns the breadcrumb of the last reservation made for the
// cart.
func (uc *CheckoutUseCase) LatestRecord(ctx context.Context, cartID string) (*domain.CheckoutRecord, error) {
	record, err := uc.records.FindByCartID(ctx, cartID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("no checkout recorded for cart %s", cartID))
		}
		return nil, fmt.Errorf("loading checkout record: %w", err)
	}
	return record, nil
}

// ResumePayment retries payment initiation for a reservation whose first
// payment attempt failed. Only the stored reservation id is ever used.
func (uc *CheckoutUseCase) ResumePayment(ctx context.Context, cartID string, identity *domain.Identity) (*Result, error) {
	if identity == nil || identity.UserID == "" {
		return nil, apperrors.NewForbiddenError("sign in to resume the payment")
	}

	record, err := uc.LatestRecord(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if record.UserID != identity.UserID {
		return nil, apperrors.NewForbiddenError("the reservation belongs to another user")
	}
	if record.Status != domain.RecordStatusPaymentFailed || record.PaymentMethod != domain.PaymentMethodOnlineGateway {
		return nil, apperrors.NewConflictError(fmt.Sprintf("reservation %d has no failed online payment to resume", record.ReservationID))
	}

	token, acquired, err := uc.guard.Acquire(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("acquiring checkout guard: %w", err)
	}
	if !acquired {
		return nil, apperrors.NewConflictError("a checkout for this cart is already in progress")
	}
	defer func() {
		if err := uc.guard.Release(context.WithoutCancel(ctx), cartID, token); err != nil {
			uc.logger.Warn("failed to release checkout guard", zap.String("cartId", cartID), zap.Error(err))
		}
	}()

	resumeID := uuid.NewString()
	logger := uc.logger.With(
		zap.String("cartId", cartID),
		zap.String("attemptId", record.AttemptID),
		zap.String("resumeId", resumeID),
		zap.Int64("reservationId", record.ReservationID),
	)

	ctx, span := uc.tracer.Start(ctx, "checkout.resume_payment", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.Int64("checkout.reservation_id", record.ReservationID),
	))
	defer span.End()

	result := &Result{
		AttemptID:       record.AttemptID,
		ReservationKind: record.Kind,
		ReservationID:   record.ReservationID,
		ServerTotal:     record.ServerTotal,
		Trail:           []State{StateInitiatingPayment},
	}

	intent, err := uc.payments.CreatePayment(ctx, record.ReservationID, record.PaymentMethod, resumeID+":payment")
	if err != nil {
		cause, _ := causeOf(err)
		result.State = StateFailed
		result.Trail = append(result.Trail, StateFailed)
		result.Failure = &Failure{
			Kind:          FailurePaymentInitiation,
			Message:       "the payment could not be started",
			Cause:         cause,
			Retryable:     true,
			ReservationID: record.ReservationID,
			HistoryPath:   record.HistoryPath(),
		}
		span.SetStatus(codes.Error, string(FailurePaymentInitiation))
		metrics.CheckoutAttempts.WithLabelValues(result.outcome()).Inc()
		logger.Warn("payment resume failed", zap.Error(err))
		return result, nil
	}

	if err := uc.records.UpdateStatus(context.WithoutCancel(ctx), cartID, record.AttemptID, domain.RecordStatusPaymentRedirected); err != nil {
		logger.Error("failed to update checkout record", zap.Error(err))
	}
	record.Status = domain.RecordStatusPaymentRedirected
	uc.publish(ctx, EventCompleted, record, logger)

	result.State = StateComplete
	result.Trail = append(result.Trail, StateComplete)
	result.RedirectURL = intent.RedirectURL
	metrics.CheckoutAttempts.WithLabelValues(result.outcome()).Inc()
	logger.Info("payment resumed")
	return result, nil
}
