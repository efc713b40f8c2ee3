package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"festival/internal/auth"
	"festival/internal/cache"
	"festival/internal/database"
	"festival/internal/external"
	"festival/internal/messaging"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	PublicBaseURL  string

	// Performance monitoring
	PprofEnabled   bool
	PprofPort      string
	MetricsEnabled bool

	// Фоновая очистка брошенных оплат
	IntentTTL     time.Duration
	SweepInterval time.Duration

	// как часто consumers проверяют отложенные рассылки
	DispatchInterval time.Duration

	Database      database.Config
	NATS          messaging.Config
	Cache         cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.PaymentConfig
	Notifier      external.NotifierConfig
	Auth          auth.Config
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env, если он есть, подхватывается без перезаписи уже заданных переменных.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		PprofEnabled:   getEnvBool("PPROF_ENABLED", false),
		PprofPort:      getEnv("PPROF_PORT", "6060"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		IntentTTL:        time.Duration(getEnvInt("INTENT_TTL_MIN", 25*60)) * time.Minute,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 300)) * time.Second,
		DispatchInterval: time.Duration(getEnvInt("DISPATCH_INTERVAL_SEC", 30)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "festival"),
			Password:           getEnv("DB_PASSWORD", "festival"),
			DBName:             getEnv("DB_NAME", "festival"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "festival"),
			ClientID:  getEnv("NATS_CLIENT_ID", "festival-api"),
		},

		Cache: cache.Config{
			Enabled:  getEnvBool("VALKEY_ENABLED", true),
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 30)) * time.Second,
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Payment: external.PaymentConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "eur"),
		},

		Notifier: external.NotifierConfig{
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
			SMSFrom:      getEnv("TWILIO_SMS_FROM", ""),
		},

		Auth: auth.Config{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
			BcryptCost:     getEnvInt("BCRYPT_COST", 12),
		},
	}
}

// insecureJWTSecrets - заглушки из примеров .env, с ними токен может выпустить кто угодно
var insecureJWTSecrets = map[string]bool{
	"change-me": true,
	"changeme":  true,
	"secret":    true,
}

const minJWTSecretLen = 32

// ValidateAPI проверяет секреты, без которых API нельзя запускать:
// подпись webhook - единственная защита от поддельных оплат, JWT - от поддельных токенов.
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.Payment.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	switch {
	case c.Auth.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case insecureJWTSecrets[strings.ToLower(c.Auth.JWTSecret)]:
		errs = append(errs, errors.New("JWT_SECRET must not be a placeholder value"))
	case len(c.Auth.JWTSecret) < minJWTSecretLen:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	return errors.Join(errs...)
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
