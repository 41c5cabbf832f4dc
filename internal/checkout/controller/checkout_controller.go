package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"campcart/internal/auth"
	"campcart/internal/checkout/usecase"
	"campcart/internal/domain"
	"campcart/internal/dto"
	apperrors "campcart/internal/errors"
	"campcart/internal/gateway"
)

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type CheckoutUseCase interface {
	Submit(ctx context.Context, in usecase.SubmitInput) *usecase.Result
	ResumePayment(ctx context.Context, cartID string, identity *domain.Identity) (*usecase.Result, error)
	LatestRecord(ctx context.Context, cartID string) (*domain.CheckoutRecord, error)
	Abandon(ctx context.Context, cartID string) error
}

type CheckoutController struct {
	useCase CheckoutUseCase
	logger  *zap.Logger
}

func NewCheckoutController(useCase CheckoutUseCase, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *CheckoutController) Submit(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	// An empty body is allowed; the missing payment method is reported
	// by the checkout itself.
	var req dto.SubmitCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	result := c.useCase.Submit(r.Context(), usecase.SubmitInput{
		CartID:        cartID,
		Identity:      auth.FromContext(r.Context()),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Note:          req.Note,
		ClientTotal:   req.ClientTotal,
	})

	c.writeResult(w, traceID, http.StatusCreated, result)
}

func (c *CheckoutController) ResumePayment(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	result, err := c.useCase.ResumePayment(r.Context(), cartID, auth.FromContext(r.Context()))
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeResult(w, traceID, http.StatusOK, result)
}

func (c *CheckoutController) LatestRecord(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	record, err := c.useCase.LatestRecord(r.Context(), cartID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.CheckoutRecordResponse{
		TraceID:          traceID,
		CartID:           record.CartID,
		AttemptID:        record.AttemptID,
		Kind:             string(record.Kind),
		ReservationID:    record.ReservationID,
		PaymentMethod:    string(record.PaymentMethod),
		Status:           record.Status,
		ServerTotal:      record.ServerTotal,
		ConfirmationPath: record.ConfirmationPath(),
		HistoryPath:      record.HistoryPath(),
		UpdatedAt:        record.UpdatedAt,
	})
}

func (c *CheckoutController) Abandon(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	if err := c.useCase.Abandon(r.Context(), cartID); err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CheckoutController) begin(w http.ResponseWriter, r *http.Request) (string, *zap.Logger, string, bool) {
	traceID := uuid.New().String()
	cartID := chi.URLParam(r, "cartId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("cartId", cartID))

	if !cartIDPattern.MatchString(cartID) {
		logger.Warn("invalid cartId in path")
		c.writeValidationError(w, traceID, "invalid cartId", apperrors.ValidationDetail{
			Field:   "cartId",
			Message: "cartId must be 1-64 letters, digits, '-' or '_'",
		})
		return traceID, logger, cartID, false
	}
	return traceID, logger, cartID, true
}

// resultStatus maps a checkout outcome to an HTTP status. success is used
// for COMPLETE.
func resultStatus(result *usecase.Result, success int) int {
	if result.Failure == nil {
		return success
	}

	switch result.Failure.Kind {
	case usecase.FailureUnauthenticated:
		return http.StatusUnauthorized
	case usecase.FailureEmptyCart, usecase.FailurePaymentMethodRequired:
		return http.StatusBadRequest
	case usecase.FailureInProgress, usecase.FailureAvailability, usecase.FailurePricing, usecase.FailureAbandoned,
		usecase.FailureReservationPending:
		return http.StatusConflict
	case usecase.FailureReservation:
		if result.Failure.Cause == gateway.KindValidation {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case usecase.FailurePaymentInitiation:
		return http.StatusBadGateway
	case usecase.FailureNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *CheckoutController) writeResult(w http.ResponseWriter, traceID string, success int, result *usecase.Result) {
	trail := make([]string, len(result.Trail))
	for i, s := range result.Trail {
		trail[i] = string(s)
	}

	response := dto.CheckoutResponse{
		TraceID:          traceID,
		AttemptID:        result.AttemptID,
		State:            string(result.State),
		ReservationKind:  string(result.ReservationKind),
		ReservationID:    result.ReservationID,
		ServerTotal:      result.ServerTotal,
		RedirectURL:      result.RedirectURL,
		ConfirmationPath: result.ConfirmationPath,
		LoginRedirect:    result.LoginRedirect,
		Trail:            trail,
		Timestamp:        time.Now().UTC(),
	}
	if f := result.Failure; f != nil {
		response.Failure = &dto.CheckoutFailureDTO{
			Kind:          string(f.Kind),
			Message:       f.Message,
			Cause:         string(f.Cause),
			Retryable:     f.Retryable,
			ReservationID: f.ReservationID,
			HistoryPath:   f.HistoryPath,
		}
	}

	c.writeJSON(w, resultStatus(result, success), response)
}

func (c *CheckoutController) handleError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "CONFLICT", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c *CheckoutController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string) {
	c.writeJSON(w, statusCode, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *CheckoutController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *CheckoutController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
