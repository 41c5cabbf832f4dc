package domain

import "fmt"

const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusCompleted = "COMPLETED"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

type Payment struct {
	Status string
}

type Booking struct {
	ID         int64
	Status     string
	Payment    Payment
	TotalPrice int64
}

type GearOrder struct {
	ID         int64
	Status     string
	TotalPrice int64
}

type PaymentIntent struct {
	RedirectURL string
}

// AvailabilitySlot is the remote capacity record for one service and date.
type AvailabilitySlot struct {
	ServiceID   int64
	Date        Date
	TotalSlots  int
	BookedSlots int
}

func (s AvailabilitySlot) Remaining() int {
	return s.TotalSlots - s.BookedSlots
}

func ConfirmationPath(kind ReservationKind, id int64) string {
	if kind == ReservationKindGearOrder {
		return fmt.Sprintf("/orders/gear/%d/confirmation", id)
	}
	return fmt.Sprintf("/bookings/%d/confirmation", id)
}

func HistoryPath(kind ReservationKind, id int64) string {
	if kind == ReservationKindGearOrder {
		return fmt.Sprintf("/account/orders/%d", id)
	}
	return fmt.Sprintf("/account/bookings/%d", id)
}
