package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("INTENT_TTL_MIN", "")
	t.Setenv("NATS_ENABLED", "")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 25*time.Hour, cfg.IntentTTL)
	assert.Equal(t, 30*time.Second, cfg.DispatchInterval)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "eur", cfg.Payment.Currency)
	assert.Equal(t, "artists", cfg.Elasticsearch.Index)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://festival.example/")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://festival.example", cfg.PublicBaseURL)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func validAPIConfig() *Config {
	cfg := &Config{}
	cfg.Payment.SecretKey = "sk_test_123"
	cfg.Payment.WebhookSecret = "whsec_123"
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestValidateAPIAcceptsConfiguredSecrets(t *testing.T) {
	assert.NoError(t, validAPIConfig().ValidateAPI())
}

func TestValidateAPIRejectsMissingSecrets(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no webhook secret", func(c *Config) { c.Payment.WebhookSecret = "" }, "STRIPE_WEBHOOK_SECRET"},
		{"no stripe key", func(c *Config) { c.Payment.SecretKey = "" }, "STRIPE_SECRET_KEY"},
		{"no jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET is required"},
		{"placeholder jwt secret", func(c *Config) { c.Auth.JWTSecret = "change-me" }, "placeholder"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short-secret" }, "at least 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.modify(cfg)

			err := cfg.ValidateAPI()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithoutSecretsFailsValidation(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	err := Load().ValidateAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET is required")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}
