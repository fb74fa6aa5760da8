package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the vault reads.
const EnvPrefix = "VAULT_"

// parseEnv loads an optional dotenv file (-env flag, else ./.env when
// present) into the process environment and overlays VAULT_* variables.
// Variables already set in the environment win over the file.
func parseEnv(config *Config) {
	if err := LoadDotEnv(flagx.EnvFileFlag()); err != nil {
		panic(err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		panic(err)
	}
}

// LoadDotEnv loads path with godotenv. An empty path means ".env" and is
// skipped silently when that file does not exist.
func LoadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays config with the VAULT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}
	str := func(dst *string, name string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(dst *bool, name string) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(dst *time.Duration, name string) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str(&c.EndpointAddrHTTP, "HTTP_ADDR")
	str(&c.EndpointAddrGRPC, "GRPC_ADDR")
	str(&c.Storage, "STORAGE")
	str(&c.DataDir, "DATA_DIR")
	str(&c.DatabaseDSN, "DATABASE_DSN")
	str(&c.TOTPIssuer, "TOTP_ISSUER")
	if v, ok := get("TOTP_SKEW"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTOTP_SKEW: %w", EnvPrefix, err))
		} else {
			c.TOTPSkew = uint(n)
		}
	}
	str(&c.SecretKey, "SECRET_KEY")
	duration(&c.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	boolean(&c.RequireVerifiedSession, "REQUIRE_VERIFIED_SESSION")
	str(&c.TLSCertFile, "TLS_CERT_FILE")
	str(&c.TLSKeyFile, "TLS_KEY_FILE")
	str(&c.S3RootUser, "S3_ROOT_USER")
	str(&c.S3RootPassword, "S3_ROOT_PASSWORD")
	str(&c.S3Bucket, "S3_BUCKET")
	str(&c.S3Region, "S3_REGION")
	str(&c.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	str(&c.S3Prefix, "S3_PREFIX")
	boolean(&c.S3UsePathStyle, "S3_USE_PATH_STYLE")
	str(&c.LogLevel, "LOG_LEVEL")
	duration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	return errors.Join(errs...)
}
