package domain

import "time"

type PaymentMethod string

const (
	PaymentMethodOnlineGateway PaymentMethod = "ONLINE_GATEWAY"
	PaymentMethodPayOnArrival  PaymentMethod = "PAY_ON_ARRIVAL"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodOnlineGateway || m == PaymentMethodPayOnArrival
}

type Identity struct {
	UserID string
	Email  string
	Name   string
	Phone  string
}

// CheckoutContext is the immutable input of one checkout attempt.
type CheckoutContext struct {
	Identity      *Identity
	Items         []LineItem
	PaymentMethod PaymentMethod
	Note          string
	PromoCode     string
}

type ReservationKind string

const (
	ReservationKindBooking   ReservationKind = "BOOKING"
	ReservationKindGearOrder ReservationKind = "GEAR_ORDER"
)

const (
	RecordStatusReserved          = "RESERVED"
	RecordStatusPaymentRedirected = "PAYMENT_REDIRECTED"
	RecordStatusPaymentFailed     = "PAYMENT_FAILED"
	RecordStatusConfirmed         = "CONFIRMED"
	RecordStatusAbandoned         = "ABANDONED"
)

// CheckoutRecord remembers the reservation created for a cart so its id
// survives a failed payment initiation or an abandoned attempt.
type CheckoutRecord struct {
	CartID        string
	AttemptID     string
	UserID        string
	Kind          ReservationKind
	ReservationID int64
	PaymentMethod PaymentMethod
	Status        string
	ServerTotal   int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConfirmationPath is where a successful pay-on-arrival checkout lands.
func (r *CheckoutRecord) ConfirmationPath() string {
	return ConfirmationPath(r.Kind, r.ReservationID)
}

// Open reports whether the reservation still waits on the shopper: it was
// abandoned or its payment never started.
func (r *CheckoutRecord) Open() bool {
	if r.ReservationID == 0 {
		return false
	}
	return r.Status == RecordStatusAbandoned || r.Status == RecordStatusPaymentFailed
}

func (r *CheckoutRecord) HistoryPath() string {
	return HistoryPath(r.Kind, r.ReservationID)
}
