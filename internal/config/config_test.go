package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigClampsValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 4*time.Second, c.TTL)
	assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	t.Setenv("CACHE_ENABLED", "off")
	t.Setenv("CACHE_TTL", "bogus")

	c := LoadCacheConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 5*time.Second, c.TTL)
}

func TestLoadReadsLedgerSettings(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "JWT_SECRET": "s", "ACCESS_TOKEN_TTL_MIN": "15",
		"PROGRAM_ID": "11111111111111111111111111111111", "SCANNER_KEYPAIR": "/tmp/k.json",
		"DB_USER": "u", "DB_HOST": "h", "DB_PORT": "3306", "DB_NAME": "n",
		"LEDGER_DRIVER": "memory", "LEDGER_SEED_BALANCE": "500", "PRESENTATION_MAX_SKEW": "2s",
		"ACTIVITY_CONSUMER": "yes",
	} {
		t.Setenv(k, v)
	}
	c := Load()
	assert.Equal(t, "memory", c.LedgerDriver)
	assert.EqualValues(t, 500, c.SeedBalance)
	assert.Equal(t, 2*time.Second, c.PresentationMaxSkew)
	assert.True(t, c.ActivityConsumer)
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, "@every 1m", c.ScannerHealthSpec)
}
