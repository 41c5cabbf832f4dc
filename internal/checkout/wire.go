package checkout

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campcart/internal/availability"
	"campcart/internal/checkout/controller"
	"campcart/internal/checkout/guard"
	"campcart/internal/checkout/repository"
	"campcart/internal/checkout/usecase"
	"campcart/internal/config"
	"campcart/internal/gateway"
)

// NewModule wires the checkout orchestrator. Breadcrumbs go to MySQL when a
// database is available and the in-flight guard moves to Redis when a
// client is given.
func NewModule(
	carts usecase.CartStore,
	checker *availability.Checker,
	backend *gateway.Client,
	db *sql.DB,
	rdb *redis.Client,
	publisher usecase.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *controller.CheckoutController {
	var records usecase.CheckoutRecordRepository = repository.NewMemoryCheckoutRecordRepository()
	if db != nil {
		records = repository.NewMySQLCheckoutRecordRepository(db)
	}

	var inFlight usecase.InFlightGuard = guard.NewMemoryGuard(cfg.Checkout.LockTTL)
	if rdb != nil {
		inFlight = guard.NewRedisGuard(rdb, cfg.Checkout.LockTTL)
	}

	uc := usecase.NewCheckoutUseCase(
		carts,
		checker,
		backend,
		backend,
		records,
		inFlight,
		publisher,
		logger,
		cfg.Checkout.LoginPath,
	)
	return controller.NewCheckoutController(uc, logger)
}
