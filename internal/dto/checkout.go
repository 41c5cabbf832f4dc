package dto

import "time"

type SubmitCheckoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Note          string `json:"note,omitempty"`
	ClientTotal   *int64 `json:"clientTotal,omitempty"`
}

type CheckoutFailureDTO struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	Cause         string `json:"cause,omitempty"`
	Retryable     bool   `json:"retryable"`
	ReservationID int64  `json:"reservationId,omitempty"`
	HistoryPath   string `json:"historyPath,omitempty"`
}

type CheckoutResponse struct {
	TraceID          string              `json:"traceId"`
	AttemptID        string              `json:"attemptId,omitempty"`
	State            string              `json:"state"`
	ReservationKind  string              `json:"reservationKind,omitempty"`
	ReservationID    int64               `json:"reservationId,omitempty"`
	ServerTotal      int64               `json:"serverTotal,omitempty"`
	RedirectURL      string              `json:"redirectUrl,omitempty"`
	ConfirmationPath string              `json:"confirmationPath,omitempty"`
	LoginRedirect    string              `json:"loginRedirect,omitempty"`
	Failure          *CheckoutFailureDTO `json:"failure,omitempty"`
	Trail            []string            `json:"trail"`
	Timestamp        time.Time           `json:"timestamp"`
}

type CheckoutRecordResponse struct {
	TraceID          string    `json:"traceId"`
	CartID           string    `json:"cartId"`
	AttemptID        string    `json:"attemptId"`
	Kind             string    `json:"kind"`
	ReservationID    int64     `json:"reservationId"`
	PaymentMethod    string    `json:"paymentMethod"`
	Status           string    `json:"status"`
	ServerTotal      int64     `json:"serverTotal"`
	ConfirmationPath string    `json:"confirmationPath"`
	HistoryPath      string    `json:"historyPath"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
