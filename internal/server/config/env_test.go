package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("GOPHCHAT_HTTP_ADDR", ":1111")
	t.Setenv("GOPHCHAT_DATABASE_DSN", "postgres://env")
	t.Setenv("GOPHCHAT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GOPHCHAT_USER_CACHE_TTL", "30s")
	t.Setenv("GOPHCHAT_SEND_RATE_LIMIT", "2.5")
	t.Setenv("GOPHCHAT_SEND_RATE_BURST", "4")
	t.Setenv("GOPHCHAT_RECALL_WINDOW", "5m")
	t.Setenv("GOPHCHAT_LOG_LEVEL", "debug")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, ":1111", c.EndpointAddrHTTP)
	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, 30*time.Second, c.UserCacheTTL)
	assert.Equal(t, 2.5, c.SendRateLimit)
	assert.Equal(t, 4, c.SendRateBurst)
	assert.Equal(t, 5*time.Minute, c.RecallWindow)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC, "unset variables keep defaults")
}

func Test_parseEnv_Malformed(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"duration", "GOPHCHAT_PERSIST_TIMEOUT", "soon"},
		{"int", "GOPHCHAT_SEND_RATE_BURST", "many"},
		{"float", "GOPHCHAT_SEND_RATE_LIMIT", "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			var c Config
			require.Panics(t, func() { parseEnv(&c) })
		})
	}
}
