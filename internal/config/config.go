package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config reúne tudo que os binários (api e worker) leem do ambiente.
type Config struct {
	Env       string
	LogLevel  string
	BankCode  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Mongo     MongoConfig
	Switch    SwitchConfig
	Ledger    LedgerConfig
	Saga      SagaConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	WebhookRPS      float64
	WebhookBurst    int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Name     string
	SSLMode  string
	MaxConns int32
}

// URL monta a connection string do pgx.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host string
	Port int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RabbitMQConfig struct {
	User       string
	Password   string
	Host       string
	Port       int
	Queue      string
	MaxRetries int
	RetryBase  time.Duration
	RetryMax   time.Duration
}

func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}

type MongoConfig struct {
	URI      string
	Database string
}

type SwitchConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Scope          string
	SigningKeyPath string
	PeerPublicKey  string
	StrictJWS      bool
}

type LedgerConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SagaConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

type ReconcileConfig struct {
	Enabled    bool
	Interval   time.Duration
	Expiration time.Duration
	Grace      time.Duration // idade mínima para o sweep tocar num PENDING (saga ainda em voo)
	BatchSize  int
}

func Load() (*Config, error) {
	var errs []string
	intEnv := func(key string, def int) int {
		v, err := getIntEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durationEnv := func(key string, def time.Duration) time.Duration {
		v, err := getDurationEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	rps, err := strconv.ParseFloat(getEnv("WEBHOOK_RPS", "50"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WEBHOOK_RPS: %v", err))
	}

	bankCode := strings.ToUpper(getEnv("BANK_CODE", "BANTEC"))

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		BankCode: bankCode,
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			WebhookRPS:      rps,
			WebhookBurst:    intEnv("WEBHOOK_BURST", 100),
			ShutdownTimeout: durationEnv("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			User:     getEnv("DB_USER", "ledger"),
			Password: getEnv("DB_PASSWORD", "secret123"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     intEnv("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "ledgerflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(intEnv("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: intEnv("REDIS_PORT", 6379),
		},
		RabbitMQ: RabbitMQConfig{
			User:       getEnv("RABBITMQ_USER", "guest"),
			Password:   getEnv("RABBITMQ_PASS", "guest"),
			Host:       getEnv("RABBITMQ_HOST", "localhost"),
			Port:       intEnv("RABBITMQ_PORT", 5672),
			Queue:      getEnv("BANK_QUEUE_NAME", "q.bank."+bankCode+".in"),
			MaxRetries: intEnv("QUEUE_MAX_RETRIES", 5),
			RetryBase:  durationEnv("QUEUE_RETRY_BASE", 2*time.Second),
			RetryMax:   durationEnv("QUEUE_RETRY_MAX", time.Minute),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "ledgerflow_audit"),
		},
		Switch: SwitchConfig{
			BaseURL:        strings.TrimRight(getEnv("SWITCH_URL", "http://localhost:9080"), "/"),
			APIKey:         getEnv("SWITCH_APIKEY", ""),
			Timeout:        durationEnv("SWITCH_TIMEOUT", 10*time.Second),
			TokenURL:       getEnv("SWITCH_TOKEN_URL", ""),
			ClientID:       getEnv("SWITCH_CLIENT_ID", ""),
			ClientSecret:   getEnv("SWITCH_CLIENT_SECRET", ""),
			Scope:          getEnv("SWITCH_SCOPE", ""),
			SigningKeyPath: getEnv("JWS_PRIVATE_KEY_PATH", ""),
			PeerPublicKey:  getEnv("JWS_SWITCH_PUBLIC_KEY_PATH", ""),
			StrictJWS:      getBoolEnv("JWS_STRICT", false),
		},
		Ledger: LedgerConfig{
			BaseURL: strings.TrimRight(getEnv("LEDGER_URL", "http://localhost:8081"), "/"),
			Timeout: durationEnv("LEDGER_TIMEOUT", 5*time.Second),
		},
		Saga: SagaConfig{
			PollInterval:    durationEnv("SAGA_POLL_INTERVAL", 1500*time.Millisecond),
			PollMaxAttempts: intEnv("SAGA_POLL_ATTEMPTS", 10),
		},
		Reconcile: ReconcileConfig{
			Enabled:    getBoolEnv("RECONCILE_ENABLED", true),
			Interval:   durationEnv("RECONCILE_INTERVAL", 30*time.Second),
			Expiration: durationEnv("RECONCILE_EXPIRATION", 3*time.Minute),
			Grace:      durationEnv("RECONCILE_GRACE", time.Minute),
			BatchSize:  intEnv("RECONCILE_BATCH", 50),
		},
	}

	if cfg.Saga.PollMaxAttempts < 1 {
		errs = append(errs, "SAGA_POLL_ATTEMPTS must be at least 1")
	}
	if cfg.Reconcile.BatchSize < 1 {
		errs = append(errs, "RECONCILE_BATCH must be at least 1")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// IsProduction decide o formato dos logs (JSON em produção, console em dev).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
