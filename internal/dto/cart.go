package dto

import (
	"time"

	"campcart/internal/domain"
)

type AddItemRequest struct {
	Kind        string               `json:"kind"`
	Service     *domain.ServiceRef   `json:"service,omitempty"`
	Combo       *domain.ComboRef     `json:"combo,omitempty"`
	Equipment   *domain.EquipmentRef `json:"equipment,omitempty"`
	Quantity    int                  `json:"quantity"`
	CheckIn     string               `json:"checkIn,omitempty"`
	CheckOut    string               `json:"checkOut,omitempty"`
	RentalDays  int                  `json:"rentalDays,omitempty"`
	ExtraPeople int                  `json:"extraPeople"`
}

// UpdateItemRequest changes one field per call; nil fields are left alone.
type UpdateItemRequest struct {
	Quantity    *int `json:"quantity,omitempty"`
	ExtraPeople *int `json:"extraPeople,omitempty"`
}

type ApplyPromoRequest struct {
	Code string `json:"code"`
}

type CartTotals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type CartResponse struct {
	TraceID   string               `json:"traceId"`
	CartID    string               `json:"cartId"`
	Items     []domain.LineItem    `json:"items"`
	Promo     *domain.AppliedPromo `json:"promo,omitempty"`
	Totals    CartTotals           `json:"totals"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type AvailabilityResponse struct {
	TraceID     string `json:"traceId"`
	ServiceID   int64  `json:"serviceId"`
	Date        string `json:"date"`
	TotalSlots  int    `json:"totalSlots"`
	BookedSlots int    `json:"bookedSlots"`
	Remaining   int    `json:"remaining"`
	Bookable    bool   `json:"bookable"`
}

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
