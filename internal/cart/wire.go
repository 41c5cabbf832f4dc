package cart

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campcart/internal/availability"
	"campcart/internal/cart/controller"
	"campcart/internal/cart/repository"
	"campcart/internal/cart/service"
	"campcart/internal/config"
)

// NewRepository picks the cart store configured by CART_STORE.
func NewRepository(cfg *config.Config, db *sql.DB, rdb *redis.Client) (service.CartRepository, error) {
	switch cfg.Cart.Store {
	case config.CartStoreMemory:
		return repository.NewMemoryCartRepository(), nil
	case config.CartStoreMySQL:
		if db == nil {
			return nil, fmt.Errorf("cart store %q needs a database connection", cfg.Cart.Store)
		}
		return repository.NewMySQLCartRepository(db), nil
	case config.CartStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("cart store %q needs a redis client", cfg.Cart.Store)
		}
		return repository.NewRedisCartRepository(rdb, cfg.Redis.CartTTL), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.Cart.Store)
	}
}

func NewModule(
	repo service.CartRepository,
	checker *availability.Checker,
	promos service.PromoCodeRepository,
	cfg *config.Config,
	logger *zap.Logger,
) (*service.CartService, *controller.CartController) {
	svc := service.NewCartService(repo, checker, promos, logger, cfg.Cart.MaxRetryAttempts)
	return svc, controller.NewCartController(svc, checker, logger)
}
