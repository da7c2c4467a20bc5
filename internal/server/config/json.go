package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/saasgate/internal/flagx"
	"github.com/dmitrijs2005/saasgate/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// use timex.Duration so both "15m" and integer nanoseconds are accepted.
// Fields left out of the file keep their current value.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr"`
	Storage            string         `json:"storage"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	AccessTokenTTL     timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL    timex.Duration `json:"refresh_token_ttl"`
	TenantCacheTTL     timex.Duration `json:"tenant_cache_ttl"`
	CacheBackend       string         `json:"cache_backend"`
	RedisAddr          string         `json:"redis_addr"`
	RedisPassword      string         `json:"redis_password"`
	RedisDB            int            `json:"redis_db"`
	Environment        string         `json:"environment"`
	LogBackend         string         `json:"log_backend"`
	LogLevel           string         `json:"log_level"`
	GoogleClientID     string         `json:"google_client_id"`
	GoogleClientSecret string         `json:"google_client_secret"`
	GoogleCallbackURL  string         `json:"google_callback_url"`
	FrontendURL        string         `json:"frontend_url"`
	AuthRateLimit      int            `json:"auth_rate_limit"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// non-zero field into config. It panics when the file cannot be read or is
// not valid JSON.
func parseJson(config *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setStr(&config.HTTPAddr, c.HTTPAddr)
	setStr(&config.GRPCAddr, c.GRPCAddr)
	setStr(&config.Storage, c.Storage)
	setStr(&config.DatabaseDSN, c.DatabaseDSN)
	setStr(&config.SecretKey, c.SecretKey)
	if c.AccessTokenTTL.Duration != 0 {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL.Duration != 0 {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.TenantCacheTTL.Duration != 0 {
		config.TenantCacheTTL = c.TenantCacheTTL.Duration
	}
	setStr(&config.CacheBackend, c.CacheBackend)
	setStr(&config.RedisAddr, c.RedisAddr)
	setStr(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setStr(&config.Environment, c.Environment)
	setStr(&config.LogBackend, c.LogBackend)
	setStr(&config.LogLevel, c.LogLevel)
	setStr(&config.GoogleClientID, c.GoogleClientID)
	setStr(&config.GoogleClientSecret, c.GoogleClientSecret)
	setStr(&config.GoogleCallbackURL, c.GoogleCallbackURL)
	setStr(&config.FrontendURL, c.FrontendURL)
	if c.AuthRateLimit != 0 {
		config.AuthRateLimit = c.AuthRateLimit
	}
	setStr(&config.S3AccessKey, c.S3AccessKey)
	setStr(&config.S3SecretKey, c.S3SecretKey)
	setStr(&config.S3Bucket, c.S3Bucket)
	setStr(&config.S3Region, c.S3Region)
	setStr(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}
