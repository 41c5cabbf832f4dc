package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	CartStoreMemory = "memory"
	CartStoreMySQL  = "mysql"
	CartStoreRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Backend  BackendConfig  `yaml:"backend"`
	Cart     CartConfig     `yaml:"cart"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Redis    RedisConfig    `yaml:"redis"`
	Rabbit   RabbitConfig   `yaml:"rabbit"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Breaker  BreakerConfig  `yaml:"breaker"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

type CartConfig struct {
	Store            string `yaml:"store"`
	MaxRetryAttempts int    `yaml:"maxRetryAttempts"`
}

type CheckoutConfig struct {
	LockTTL   time.Duration `yaml:"lockTtl"`
	LoginPath string        `yaml:"loginPath"`
}

type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	CartTTL time.Duration `yaml:"cartTtl"`
}

type RabbitConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"maxRequests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutiveFailures"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "campcart")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "campcart")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("CART_STORE", CartStoreMemory)
	v.SetDefault("CART_MAX_RETRY_ATTEMPTS", 3)
	v.SetDefault("CHECKOUT_LOCK_TTL", "2m")
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_CART_TTL", "720h")
	v.SetDefault("RABBIT_URL", "")
	v.SetDefault("RABBIT_EXCHANGE", "checkout.events")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "campcart")
	v.SetDefault("BREAKER_MAX_REQUESTS", 1)
	v.SetDefault("BREAKER_INTERVAL", "60s")
	v.SetDefault("BREAKER_TIMEOUT", "30s")
	v.SetDefault("BREAKER_CONSECUTIVE_FAILURES", 5)
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	durations := map[string]*time.Duration{}
	var (
		connMaxLifetime, backendTimeout, lockTTL, cartTTL time.Duration
		breakerInterval, breakerTimeout                   time.Duration
	)
	durations["DB_CONN_MAX_LIFETIME"] = &connMaxLifetime
	durations["BACKEND_TIMEOUT"] = &backendTimeout
	durations["CHECKOUT_LOCK_TTL"] = &lockTTL
	durations["REDIS_CART_TTL"] = &cartTTL
	durations["BREAKER_INTERVAL"] = &breakerInterval
	durations["BREAKER_TIMEOUT"] = &breakerTimeout

	for key, dst := range durations {
		d, err := duration(v, key)
		if err != nil {
			return nil, err
		}
		*dst = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Backend: BackendConfig{
			BaseURL: v.GetString("BACKEND_BASE_URL"),
			Timeout: backendTimeout,
		},
		Cart: CartConfig{
			Store:            v.GetString("CART_STORE"),
			MaxRetryAttempts: v.GetInt("CART_MAX_RETRY_ATTEMPTS"),
		},
		Checkout: CheckoutConfig{
			LockTTL:   lockTTL,
			LoginPath: v.GetString("LOGIN_PATH"),
		},
		Redis: RedisConfig{
			Addr:    v.GetString("REDIS_ADDR"),
			CartTTL: cartTTL,
		},
		Rabbit: RabbitConfig{
			URL:      v.GetString("RABBIT_URL"),
			Exchange: v.GetString("RABBIT_EXCHANGE"),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: v.GetString("OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
		Breaker: BreakerConfig{
			MaxRequests:         v.GetUint32("BREAKER_MAX_REQUESTS"),
			Interval:            breakerInterval,
			Timeout:             breakerTimeout,
			ConsecutiveFailures: v.GetUint32("BREAKER_CONSECUTIVE_FAILURES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cart.Store {
	case CartStoreMemory, CartStoreMySQL:
	case CartStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("CART_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CART_STORE %q", c.Cart.Store)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.Cart.MaxRetryAttempts < 1 {
		c.Cart.MaxRetryAttempts = 1
	}
	return nil
}
