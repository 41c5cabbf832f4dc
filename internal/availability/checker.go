package availability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"campcart/internal/config"
	"campcart/internal/domain"
	"campcart/internal/dto"
	apperrors "campcart/internal/errors"
	"campcart/internal/gateway"
	"campcart/internal/infrastructure/metrics"
)

const (
	maxConcurrentLookups = 4
	sharedLookupTimeout  = 15 * time.Second
)

type Gateway interface {
	ServiceAvailability(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error)
}

type Verdict struct {
	Bookable  bool
	Reason    string
	ServiceID int64
	Date      domain.Date
}

// Checker answers whether a service can still be booked on a date. It is
// read-only: identical concurrent lookups share one backend call and the
// backend is guarded by a circuit breaker. Absence of data means not
// bookable.
type Checker struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker[[]dto.AvailabilityRecord]
	group   singleflight.Group
	logger  *zap.Logger
}

func NewChecker(gw Gateway, cfg config.BreakerConfig, logger *zap.Logger) *Checker {
	settings := gobreaker.Settings{
		Name:        "service-availability",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || gateway.IsKind(err, gateway.KindValidation) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Checker{
		gateway: gw,
		breaker: gobreaker.NewCircuitBreaker[[]dto.AvailabilityRecord](settings),
		logger:  logger,
	}
}

// lookup shares one backend call between identical concurrent lookups. The
// shared call is detached from every caller; a caller only stops waiting when
// its own context is done.
func (c *Checker) lookup(ctx context.Context, serviceID int64, date domain.Date) ([]dto.AvailabilityRecord, error) {
	key := strconv.FormatInt(serviceID, 10) + ":" + date.String()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return c.breaker.Execute(func() ([]dto.AvailabilityRecord, error) {
			return c.gateway.ServiceAvailability(callCtx, serviceID, date)
		})
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &gateway.RemoteError{Kind: gateway.KindNetwork, Op: "service availability", Err: err}
		}
		return nil, err
	}
	return v.([]dto.AvailabilityRecord), nil
}

// CheckServiceAvailability returns the capacity record for the exact date.
func (c *Checker) CheckServiceAvailability(ctx context.Context, serviceID int64, date domain.Date) (domain.AvailabilitySlot, error) {
	records, err := c.lookup(ctx, serviceID, date)
	if err != nil {
		if re, ok := gateway.IsRemoteError(err); ok && re.StatusCode == http.StatusNotFound {
			return domain.AvailabilitySlot{}, apperrors.NewNotFoundError(fmt.Sprintf("service %d has no availability", serviceID))
		}
		return domain.AvailabilitySlot{}, err
	}

	for _, r := range records {
		if r.Date == date.String() {
			return domain.AvailabilitySlot{
				ServiceID:   serviceID,
				Date:        date,
				TotalSlots:  r.TotalSlots,
				BookedSlots: r.BookedSlots,
			}, nil
		}
	}

	return domain.AvailabilitySlot{}, apperrors.NewNotFoundError(fmt.Sprintf("service %d has no availability on %s", serviceID, date))
}

// IsBookable returns an error only when the answer is unknown.
func (c *Checker) IsBookable(ctx context.Context, serviceID int64, date domain.Date) (Verdict, error) {
	verdict := Verdict{ServiceID: serviceID, Date: date}

	slot, err := c.CheckServiceAvailability(ctx, serviceID, date)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			verdict.Reason = "no availability record for date"
			metrics.AvailabilityChecks.WithLabelValues("unavailable").Inc()
			return verdict, nil
		}
		metrics.AvailabilityChecks.WithLabelValues("error").Inc()
		return verdict, err
	}

	if slot.Remaining() <= 0 {
		verdict.Reason = "fully booked"
		metrics.AvailabilityChecks.WithLabelValues("unavailable").Inc()
		return verdict, nil
	}

	verdict.Bookable = true
	metrics.AvailabilityChecks.WithLabelValues("bookable").Inc()
	return verdict, nil
}

// CheckItem checks every service a line consumes on its check-in date.
// Equipment has no date capacity and is always bookable.
func (c *Checker) CheckItem(ctx context.Context, item domain.LineItem) (Verdict, error) {
	switch item.Kind {
	case domain.ItemKindService:
		if item.Service == nil {
			return Verdict{}, domain.ErrVariantMismatch
		}
		return c.IsBookable(ctx, item.Service.ID, item.CheckIn)
	case domain.ItemKindCombo:
		ids, err := item.ServiceIDs()
		if err != nil {
			return Verdict{}, err
		}
		return c.checkAll(ctx, ids, item.CheckIn)
	case domain.ItemKindEquipment:
		return Verdict{Bookable: true}, nil
	default:
		return Verdict{}, fmt.Errorf("%w: %q", domain.ErrUnknownItemKind, item.Kind)
	}
}

func (c *Checker) checkAll(ctx context.Context, serviceIDs []int64, date domain.Date) (Verdict, error) {
	if len(serviceIDs) == 0 {
		return Verdict{Date: date, Reason: "combo has no services"}, nil
	}

	verdicts := make([]Verdict, len(serviceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for i, id := range serviceIDs {
		i, id := i, id
		g.Go(func() error {
			v, err := c.IsBookable(gctx, id, date)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Verdict{Date: date}, err
	}

	for _, v := range verdicts {
		if !v.Bookable {
			return v, nil
		}
	}
	return Verdict{Bookable: true, Date: date}, nil
}
