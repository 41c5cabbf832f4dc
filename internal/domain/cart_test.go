package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_SubtotalAndIndex(t *testing.T) {
	cart := NewCart("cart-1")
	assert.True(t, cart.IsEmpty())

	svc := newServiceItem()
	svc.TotalPrice = 100000
	eq := newEquipmentItem()
	eq.TotalPrice = 600000
	cart.Items = append(cart.Items, svc, eq)

	assert.False(t, cart.IsEmpty())
	assert.Equal(t, int64(700000), cart.Subtotal())
	assert.Equal(t, 1, cart.IndexOf("eq-1"))
	assert.Equal(t, -1, cart.IndexOf("missing"))
	assert.True(t, cart.HasDatedItems())
}

func TestCart_CloneDetachesItems(t *testing.T) {
	cart := NewCart("cart-1")
	cart.Items = append(cart.Items, newServiceItem())
	cart.Promo = &AppliedPromo{Code: "SUMMER", PercentOff: 10}

	clone := cart.Clone()
	clone.Items[0].Quantity = 4
	clone.Promo.PercentOff = 50

	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 10, cart.Promo.PercentOff)
}

func TestDate_AddDays(t *testing.T) {
	d, err := ParseDate("2025-12-31")
	require.NoError(t, err)

	next, err := d.AddDays(1)
	require.NoError(t, err)
	assert.Equal(t, Date("2026-01-01"), next)

	_, err = ParseDate("31/12/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestPromoCode_Usable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&PromoCode{Code: "A", PercentOff: 10, Active: true}).Usable(now))
	assert.True(t, (&PromoCode{Code: "A", PercentOff: 10, Active: true, ExpiresAt: &future}).Usable(now))
	assert.False(t, (&PromoCode{Code: "A", PercentOff: 10, Active: true, ExpiresAt: &past}).Usable(now))
	assert.False(t, (&PromoCode{Code: "A", PercentOff: 10, Active: false}).Usable(now))
	assert.False(t, (&PromoCode{Code: "A", PercentOff: 0, Active: true}).Usable(now))
}

func TestReservationPaths(t *testing.T) {
	assert.Equal(t, "/bookings/42/confirmation", ConfirmationPath(ReservationKindBooking, 42))
	assert.Equal(t, "/orders/gear/7/confirmation", ConfirmationPath(ReservationKindGearOrder, 7))
	assert.Equal(t, "/account/bookings/42", HistoryPath(ReservationKindBooking, 42))
	assert.Equal(t, "/account/orders/7", HistoryPath(ReservationKindGearOrder, 7))

	record := &CheckoutRecord{Kind: ReservationKindGearOrder, ReservationID: 9}
	assert.Equal(t, "/orders/gear/9/confirmation", record.ConfirmationPath())
	assert.Equal(t, "/account/orders/9", record.HistoryPath())
}

func TestAvailabilitySlot_Remaining(t *testing.T) {
	slot := AvailabilitySlot{ServiceID: 1, Date: "2025-06-01", TotalSlots: 10, BookedSlots: 10}
	assert.Equal(t, 0, slot.Remaining())

	assert.True(t, PaymentMethodPayOnArrival.IsValid())
	assert.False(t, PaymentMethod("CASH").IsValid())
}
