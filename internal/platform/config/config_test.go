package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("REQUIRED_DOCUMENT_TYPES", "")
	t.Setenv("EXPIRY_WARNING_LEAD", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"business_license", "tax_clearance", "health_certificate"}, cfg.Compliance.RequiredDocumentTypes)
	assert.Equal(t, 30*24*time.Hour, cfg.Sweep.ExpiryWarningLead)
	assert.NotEmpty(t, cfg.Auth.JWTSigningKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GOVDASH_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("RATE_LIMIT_WINDOW", "10m")
	t.Setenv("NOTIFY_SEND_RATE", "2.5")
	t.Setenv("SWEEP_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.InDelta(t, 2.5, cfg.Notification.SendRatePerSec, 0.0001)
	assert.False(t, cfg.Sweep.Enabled)
}

func TestFromEnv_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
}
