package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// lookupFunc resolves an environment key.
type lookupFunc func(key string) (string, bool)

// parseEnv overlays settings from the process environment. Keys missing from
// the environment are taken from a dotenv file: the one named by -env-file,
// or ./.env when it exists. Real environment variables always win over the
// file, matching godotenv.Load semantics.
//
// Recognised keys:
//
//	HTTP_ADDR, GRPC_ADDR, STORAGE, DATABASE_URL, JWT_SECRET,
//	ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL, TENANT_CACHE_TTL (Go durations),
//	CACHE_BACKEND, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, APP_ENV,
//	LOG_BACKEND, LOG_LEVEL, GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET,
//	GOOGLE_CALLBACK_URL, FRONTEND_URL, AUTH_RATE_LIMIT,
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_ENDPOINT
//
// A malformed value panics, like a malformed JSON config does.
func parseEnv(config *Config) {
	lookup := envLookup(flagx.EnvFile())
	applyEnv(config, lookup)
}

func envLookup(path string) lookupFunc {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	fileVars, err := godotenv.Read(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
		fileVars = map[string]string{}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
}

func applyEnv(config *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("GRPC_ADDR", &config.GRPCAddr)
	str("STORAGE", &config.Storage)
	str("DATABASE_URL", &config.DatabaseDSN)
	str("JWT_SECRET", &config.SecretKey)
	dur("ACCESS_TOKEN_TTL", &config.AccessTokenTTL)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenTTL)
	dur("TENANT_CACHE_TTL", &config.TenantCacheTTL)
	str("CACHE_BACKEND", &config.CacheBackend)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	num("REDIS_DB", &config.RedisDB)
	str("APP_ENV", &config.Environment)
	str("LOG_BACKEND", &config.LogBackend)
	str("LOG_LEVEL", &config.LogLevel)
	str("GOOGLE_CLIENT_ID", &config.GoogleClientID)
	str("GOOGLE_CLIENT_SECRET", &config.GoogleClientSecret)
	str("GOOGLE_CALLBACK_URL", &config.GoogleCallbackURL)
	str("FRONTEND_URL", &config.FrontendURL)
	num("AUTH_RATE_LIMIT", &config.AuthRateLimit)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_ENDPOINT", &config.S3BaseEndpoint)
}
