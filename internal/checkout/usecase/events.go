package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campcart/internal/domain"
	"campcart/internal/infrastructure/metrics"
)

const (
	EventReservationCreated       = "checkout.reservation_created"
	EventPaymentInitiationFailed  = "checkout.payment_initiation_failed"
	EventCompleted                = "checkout.completed"
	EventAbandonedWithReservation = "checkout.abandoned"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type CheckoutEvent struct {
	CartID          string    `json:"cartId"`
	AttemptID       string    `json:"attemptId"`
	UserID          string    `json:"userId"`
	ReservationKind string    `json:"reservationKind"`
	ReservationID   int64     `json:"reservationId"`
	PaymentMethod   string    `json:"paymentMethod"`
	Status          string    `json:"status"`
	ServerTotal     int64     `json:"serverTotal"`
	OccurredAt      time.Time `json:"occurredAt"`
}

func eventFor(rec *domain.CheckoutRecord, now time.Time) CheckoutEvent {
	return CheckoutEvent{
		CartID:          rec.CartID,
		AttemptID:       rec.AttemptID,
		UserID:          rec.UserID,
		ReservationKind: string(rec.Kind),
		ReservationID:   rec.ReservationID,
		PaymentMethod:   string(rec.PaymentMethod),
		Status:          rec.Status,
		ServerTotal:     rec.ServerTotal,
		OccurredAt:      now.UTC(),
	}
}

// publish is best effort; a lost event never fails the checkout.
func (uc *CheckoutUseCase) publish(ctx context.Context, key string, rec *domain.CheckoutRecord, logger *zap.Logger) {
	if err := uc.publisher.Publish(context.WithoutCancel(ctx), key, eventFor(rec, uc.now())); err != nil {
		metrics.EventPublishFailures.Inc()
		logger.Warn("failed to publish checkout event", zap.String("event", key), zap.Error(err))
	}
}
