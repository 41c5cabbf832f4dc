package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campcart/internal/availability"
	"campcart/internal/cart"
	"campcart/internal/cart/service"
	"campcart/internal/checkout"
	"campcart/internal/checkout/usecase"
	"campcart/internal/commons"
	"campcart/internal/config"
	"campcart/internal/gateway"
	"campcart/internal/infrastructure/logger"
	"campcart/internal/infrastructure/mysql"
	"campcart/internal/infrastructure/rabbit"
	"campcart/internal/infrastructure/redis"
	"campcart/internal/infrastructure/tracing"
	promorepo "campcart/internal/promo/repository"
	"campcart/internal/server"
)

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return commons.LoadConfig(path)
	}
	return config.Load()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		zapLogger.Fatal("setting up tracing", zap.Error(err))
	}

	var db *sql.DB
	if cfg.Cart.Store == config.CartStoreMySQL {
		db, err = mysql.NewConnection(ctx, cfg.Database)
		if err != nil {
			zapLogger.Fatal("connecting to database", zap.Error(err))
		}
		defer db.Close()
		zapLogger.Info("database connected")
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer rdb.Close()
		zapLogger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher usecase.EventPublisher
	if cfg.Rabbit.URL != "" {
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			zapLogger.Fatal("connecting to rabbitmq", zap.Error(err))
		}
		defer conn.Close()

		p, err := rabbit.NewPublisher(conn, cfg.Rabbit.Exchange)
		if err != nil {
			zapLogger.Fatal("creating event publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
		zapLogger.Info("rabbitmq connected", zap.String("exchange", cfg.Rabbit.Exchange))
	}

	var promos service.PromoCodeRepository = promorepo.NewMemoryPromoCodeRepository()
	if db != nil {
		promos = promorepo.NewMySQLPromoCodeRepository(db)
	}

	cartRepo, err := cart.NewRepository(cfg, db, rdb)
	if err != nil {
		zapLogger.Fatal("creating cart repository", zap.Error(err))
	}

	backend := gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, zapLogger)
	checker := availability.NewChecker(backend, cfg.Breaker, zapLogger)

	carts, cartCtrl := cart.NewModule(cartRepo, checker, promos, cfg, zapLogger)
	checkoutCtrl := checkout.NewModule(carts, checker, backend, db, rdb, publisher, cfg, zapLogger)

	router := server.NewRouter(cartCtrl, checkoutCtrl, zapLogger)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Error("tracing shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
