package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read by parseEnv.
const EnvPrefix = "GOPHCHAT_"

// parseEnv overlays Config with GOPHCHAT_* environment variables. A .env file
// in the working directory is loaded first if present; variables already set
// in the process environment win over it. Malformed numbers and durations
// panic, as with the other layers.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("REDIS_URL", &config.RedisURL)
	envDuration("USER_CACHE_TTL", &config.UserCacheTTL)
	envFloat("SEND_RATE_LIMIT", &config.SendRateLimit)
	envInt("SEND_RATE_BURST", &config.SendRateBurst)
	envDuration("PERSIST_TIMEOUT", &config.PersistTimeout)
	envDuration("RECALL_WINDOW", &config.RecallWindow)
	envString("LOG_LEVEL", &config.LogLevel)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func envInt(name string, dst *int) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envFloat(name string, dst *float64) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(err)
	}
	*dst = f
}
