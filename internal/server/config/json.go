package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// both "90s" strings and integer nanoseconds. Absent fields leave the
// corresponding Config value untouched.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	RedisURL                    string         `json:"redis_url"`
	UserCacheTTL                timex.Duration `json:"user_cache_ttl"`
	SendRateLimit               float64        `json:"send_rate_limit"`
	SendRateBurst               int            `json:"send_rate_burst"`
	PersistTimeout              timex.Duration `json:"persist_timeout"`
	RecallWindow                timex.Duration `json:"recall_window"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (or $GOPHCHAT_CONFIG) and
// overlays its non-empty fields onto config. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.UserCacheTTL.Duration > 0 {
		config.UserCacheTTL = c.UserCacheTTL.Duration
	}
	if c.PersistTimeout.Duration > 0 {
		config.PersistTimeout = c.PersistTimeout.Duration
	}
	if c.RecallWindow.Duration > 0 {
		config.RecallWindow = c.RecallWindow.Duration
	}
	if c.SendRateLimit > 0 {
		config.SendRateLimit = c.SendRateLimit
	}
	if c.SendRateBurst > 0 {
		config.SendRateBurst = c.SendRateBurst
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
