package dto

// Wire types of the camping backend REST API.

type AvailabilityRecord struct {
	Date        string `json:"date"`
	TotalSlots  int    `json:"totalSlots"`
	BookedSlots int    `json:"bookedSlots"`
}

type BookingServiceLine struct {
	ServiceID    int64  `json:"serviceId"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	People       int    `json:"people"`
	ExtraPeople  int    `json:"extraPeople"`
	TotalPrice   int64  `json:"totalPrice"`
}

type BookingComboLine struct {
	ComboID      int64  `json:"comboId"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	People       int    `json:"people"`
	ExtraPeople  int    `json:"extraPeople"`
	TotalPrice   int64  `json:"totalPrice"`
}

type BookingRequest struct {
	Services  []BookingServiceLine `json:"services"`
	Combos    []BookingComboLine   `json:"combos"`
	Gear      []GearOrderLine      `json:"gear,omitempty"`
	Note      string               `json:"note,omitempty"`
	PromoCode string               `json:"promoCode,omitempty"`
}

type PaymentResponseBody struct {
	Status string `json:"status"`
}

type BookingResponse struct {
	ID         int64               `json:"id"`
	Status     string              `json:"status"`
	TotalPrice int64               `json:"totalPrice"`
	Payment    PaymentResponseBody `json:"payment"`
}

const GearItemType = "GEAR"

type GearOrderLine struct {
	ItemType   string `json:"itemType"`
	ItemID     int64  `json:"itemId"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	TotalPrice int64  `json:"totalPrice"`
	RentalDays int    `json:"rentalDays"`
}

type GearOrderRequest struct {
	UserID       string          `json:"userId"`
	CustomerName string          `json:"customerName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	TotalPrice   int64           `json:"totalPrice"`
	PromoCode    string          `json:"promoCode,omitempty"`
	Items        []GearOrderLine `json:"items"`
}

type GearOrderResponse struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	TotalPrice int64  `json:"totalPrice"`
}

type PaymentRequest struct {
	BookingID int64  `json:"bookingId"`
	Method    string `json:"method"`
}

type PaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

type CustomerResponse struct {
	ID int64 `json:"id"`
}

type BackendErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
