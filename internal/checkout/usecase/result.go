package usecase

import (
	"campcart/internal/domain"
	"campcart/internal/gateway"
)

type FailureKind string

const (
	FailureUnauthenticated       FailureKind = "UNAUTHENTICATED"
	FailureEmptyCart             FailureKind = "EMPTY_CART"
	FailurePaymentMethodRequired FailureKind = "PAYMENT_METHOD_REQUIRED"
	FailureInProgress            FailureKind = "IN_PROGRESS"
	FailurePricing               FailureKind = "PRICING"
	FailureAvailability          FailureKind = "AVAILABILITY"
	FailureReservation           FailureKind = "RESERVATION"
	FailurePaymentInitiation     FailureKind = "PAYMENT_INITIATION"
	FailureNetwork               FailureKind = "NETWORK"
	FailureAbandoned             FailureKind = "ABANDONED"
	FailureReservationPending    FailureKind = "RESERVATION_PENDING"
)

// Failure explains why an attempt did not complete. When a reservation was
// already created its id and order-history path are always set.
type Failure struct {
	Kind          FailureKind
	Message       string
	Cause         gateway.ErrorKind
	Retryable     bool
	ReservationID int64
	HistoryPath   string
}

// Result is the single outcome of a checkout attempt. State is IDLE when a
// precondition failed, otherwise COMPLETE or FAILED.
type Result struct {
	AttemptID        string
	State            State
	ReservationKind  domain.ReservationKind
	ReservationID    int64
	ServerTotal      int64
	RedirectURL      string
	ConfirmationPath string
	LoginRedirect    string
	Failure          *Failure
	Trail            []State
}

func (r *Result) Succeeded() bool {
	return r.State == StateComplete
}

func (r *Result) outcome() string {
	if r.Failure != nil {
		return string(r.Failure.Kind)
	}
	return string(r.State)
}

func causeOf(err error) (gateway.ErrorKind, bool) {
	if re, ok := gateway.IsRemoteError(err); ok {
		return re.Kind, re.Retryable()
	}
	return "", true
}
