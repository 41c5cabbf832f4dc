package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"campcart/internal/domain"
	"campcart/internal/dto"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// Client talks to the camping backend. It never retries; every failure is
// returned as a *RemoteError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) ServiceAvailability(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
	query := url.Values{}
	query.Set("date", date.String())

	var records []dto.AvailabilityRecord
	path := fmt.Sprintf("/services/%d/availability", serviceID)
	if err := c.do(ctx, "service availability", http.MethodGet, path, query, nil, "", &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) ResolveCustomerID(ctx context.Context, userID string) (int64, error) {
	var resp dto.CustomerResponse
	path := "/customers/by-user/" + url.PathEscape(userID)
	if err := c.do(ctx, "resolve customer", http.MethodGet, path, nil, nil, "", &resp); err != nil {
		return 0, err
	}
	if resp.ID <= 0 {
		return 0, &RemoteError{Kind: KindServer, Op: "resolve customer", Message: "response carries no customer id"}
	}
	return resp.ID, nil
}

func (c *Client) CreateBooking(ctx context.Context, customerID int64, req dto.BookingRequest, idempotencyKey string) (*domain.Booking, error) {
	query := url.Values{}
	query.Set("customerId", strconv.FormatInt(customerID, 10))

	var resp dto.BookingResponse
	if err := c.do(ctx, "create booking", http.MethodPost, "/bookings", query, req, idempotencyKey, &resp); err != nil {
		return nil, err
	}
	if resp.ID <= 0 {
		return nil, &RemoteError{Kind: KindServer, Op: "create booking", Message: "response carries no booking id"}
	}

	return &domain.Booking{
		ID:         resp.ID,
		Status:     resp.Status,
		Payment:    domain.Payment{Status: resp.Payment.Status},
		TotalPrice: resp.TotalPrice,
	}, nil
}

func (c *Client) CreateGearOrder(ctx context.Context, req dto.GearOrderRequest, idempotencyKey string) (*domain.GearOrder, error) {
	var resp dto.GearOrderResponse
	if err := c.do(ctx, "create gear order", http.MethodPost, "/orders/gear", nil, req, idempotencyKey, &resp); err != nil {
		return nil, err
	}
	if resp.ID <= 0 {
		return nil, &RemoteError{Kind: KindServer, Op: "create gear order", Message: "response carries no order id"}
	}

	return &domain.GearOrder{
		ID:         resp.ID,
		Status:     resp.Status,
		TotalPrice: resp.TotalPrice,
	}, nil
}

func (c *Client) CreatePayment(ctx context.Context, bookingID int64, method domain.PaymentMethod, idempotencyKey string) (*domain.PaymentIntent, error) {
	req := dto.PaymentRequest{BookingID: bookingID, Method: string(method)}

	var resp dto.PaymentResponse
	if err := c.do(ctx, "create payment", http.MethodPost, "/payments/create", nil, req, idempotencyKey, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentURL == "" {
		return nil, &RemoteError{Kind: KindServer, Op: "create payment", Message: "response carries no payment url"}
	}

	return &domain.PaymentIntent{RedirectURL: resp.PaymentURL}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, idempotencyKey string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return &RemoteError{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call finished",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Kind: KindServer, Op: op, Message: "undecodable response body", Err: err}
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) *RemoteError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var body dto.BackendErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			message = body.Message
		} else if body.Error != "" {
			message = body.Error
		}
	}

	kind := KindValidation
	if resp.StatusCode >= http.StatusInternalServerError {
		kind = KindServer
	}

	return &RemoteError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Message: message}
}
