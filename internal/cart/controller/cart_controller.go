package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"campcart/internal/domain"
	"campcart/internal/dto"
	apperrors "campcart/internal/errors"
	"campcart/internal/gateway"
)

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type CartService interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Add(ctx context.Context, cartID string, item domain.LineItem) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domain.Cart, error)
	UpdateExtraPeople(ctx context.Context, cartID, itemID string, extra int) (*domain.Cart, error)
	Remove(ctx context.Context, cartID, itemID string) (*domain.Cart, error)
	ApplyPromo(ctx context.Context, cartID, code string) (*domain.Cart, error)
	RemovePromo(ctx context.Context, cartID string) (*domain.Cart, error)
	Totals(cart *domain.Cart) domain.Totals
}

type AvailabilityChecker interface {
	CheckServiceAvailability(ctx context.Context, serviceID int64, date domain.Date) (domain.AvailabilitySlot, error)
}

type CartController struct {
	cartService CartService
	checker     AvailabilityChecker
	logger      *zap.Logger
}

func NewCartController(cartService CartService, checker AvailabilityChecker, logger *zap.Logger) *CartController {
	return &CartController{
		cartService: cartService,
		checker:     checker,
		logger:      logger,
	}
}

func (c *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	cart, err := c.cartService.Get(r.Context(), cartID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusOK, cart)
}

func (c *CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	var req dto.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	item, err := c.buildLineItem(req)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	cart, err := c.cartService.Add(r.Context(), cartID, item)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusCreated, cart)
}

func (c *CartController) buildLineItem(req dto.AddItemRequest) (domain.LineItem, error) {
	var details []apperrors.ValidationDetail

	kind := domain.ItemKind(req.Kind)
	switch kind {
	case domain.ItemKindService, domain.ItemKindCombo, domain.ItemKindEquipment:
	case "":
		details = append(details, apperrors.ValidationDetail{Field: "kind", Message: "kind is required"})
	default:
		details = append(details, apperrors.ValidationDetail{Field: "kind", Message: "kind must be SERVICE, COMBO or EQUIPMENT"})
	}

	if req.Quantity < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be positive"})
	}
	if req.ExtraPeople < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "extraPeople", Message: "extraPeople must not be negative"})
	}

	var checkIn, checkOut domain.Date
	if req.CheckIn != "" {
		d, err := domain.ParseDate(req.CheckIn)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "checkIn", Message: "checkIn must be YYYY-MM-DD"})
		}
		checkIn = d
	}
	if req.CheckOut != "" {
		d, err := domain.ParseDate(req.CheckOut)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "checkOut", Message: "checkOut must be YYYY-MM-DD"})
		}
		checkOut = d
	}

	if len(details) > 0 {
		return domain.LineItem{}, apperrors.NewValidationError("validation failed", details...)
	}

	return domain.LineItem{
		Kind:        kind,
		Service:     req.Service,
		Combo:       req.Combo,
		Equipment:   req.Equipment,
		Quantity:    req.Quantity,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		RentalDays:  req.RentalDays,
		ExtraPeople: req.ExtraPeople,
	}, nil
}

func (c *CartController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemId")

	var req dto.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}
	if (req.Quantity == nil) == (req.ExtraPeople == nil) {
		c.writeValidationError(w, traceID, "validation failed", apperrors.ValidationDetail{
			Field:   "body",
			Message: "exactly one of quantity or extraPeople must be set",
		})
		return
	}

	var (
		cart *domain.Cart
		err  error
	)
	if req.Quantity != nil {
		cart, err = c.cartService.UpdateQuantity(r.Context(), cartID, itemID, *req.Quantity)
	} else {
		cart, err = c.cartService.UpdateExtraPeople(r.Context(), cartID, itemID, *req.ExtraPeople)
	}
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusOK, cart)
}

func (c *CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	cart, err := c.cartService.Remove(r.Context(), cartID, chi.URLParam(r, "itemId"))
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusOK, cart)
}

func (c *CartController) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	var req dto.ApplyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	cart, err := c.cartService.ApplyPromo(r.Context(), cartID, req.Code)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusOK, cart)
}

func (c *CartController) RemovePromo(w http.ResponseWriter, r *http.Request) {
	traceID, logger, cartID, ok := c.begin(w, r)
	if !ok {
		return
	}

	cart, err := c.cartService.RemovePromo(r.Context(), cartID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeCart(w, traceID, http.StatusOK, cart)
}

func (c *CartController) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	serviceID, err := strconv.ParseInt(chi.URLParam(r, "serviceId"), 10, 64)
	if err != nil || serviceID <= 0 {
		c.writeValidationError(w, traceID, "invalid serviceId", apperrors.ValidationDetail{
			Field:   "serviceId",
			Message: "serviceId must be a positive integer",
		})
		return
	}
	date, err := domain.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		c.writeValidationError(w, traceID, "invalid date", apperrors.ValidationDetail{
			Field:   "date",
			Message: "date must be YYYY-MM-DD",
		})
		return
	}

	resp := dto.AvailabilityResponse{TraceID: traceID, ServiceID: serviceID, Date: date.String()}

	slot, err := c.checker.CheckServiceAvailability(r.Context(), serviceID, date)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			c.writeJSON(w, http.StatusOK, resp)
			return
		}
		c.handleError(w, traceID, err, logger)
		return
	}

	resp.TotalSlots = slot.TotalSlots
	resp.BookedSlots = slot.BookedSlots
	resp.Remaining = max(slot.Remaining(), 0)
	resp.Bookable = slot.Remaining() > 0
	c.writeJSON(w, http.StatusOK, resp)
}

func (c *CartController) begin(w http.ResponseWriter, r *http.Request) (string, *zap.Logger, string, bool) {
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

func (c *CartController) handleError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsAvailabilityError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "UNAVAILABLE", err.Error())
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "CONFLICT", err.Error())
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "DEADLOCK", err.Error())
		return
	}

	if re, ok := gateway.IsRemoteError(err); ok {
		logger.Warn("backend unavailable", zap.Error(err))
		status := http.StatusBadGateway
		if re.Kind == gateway.KindNetwork {
			status = http.StatusServiceUnavailable
		}
		c.writeErrorResponse(w, traceID, status, "BACKEND_"+string(re.Kind), "the booking backend could not be reached")
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c *CartController) writeCart(w http.ResponseWriter, traceID string, status int, cart *domain.Cart) {
	totals := c.cartService.Totals(cart)
	c.writeJSON(w, status, dto.CartResponse{
		TraceID: traceID,
		CartID:  cart.ID,
		Items:   cart.Items,
		Promo:   cart.Promo,
		Totals: dto.CartTotals{
			Subtotal: totals.Subtotal,
			Discount: totals.Discount,
			Total:    totals.Total,
		},
		UpdatedAt: cart.UpdatedAt,
	})
}

func (c *CartController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string) {
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

func (c *CartController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *CartController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
