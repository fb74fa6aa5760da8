package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    HTTP bind address (e.g. ":8000")
//	-ga string   gRPC bind address, empty disables gRPC
//	-s string    storage backend: file, sqlite, postgres, s3
//	-dir string  data directory of the file backend
//	-d string    database DSN (PostgreSQL) or path (SQLite)
//	-k string    JWT HMAC secret key
//	-t int       access token validity, minutes
//	-verified    require a verified session on password routes (use -verified=true
//	             when another argument follows)
//	-cert string TLS certificate file
//	-key string  TLS key file
//	-u string    S3 root user
//	-p string    S3 root password
//	-b string    S3 bucket name
//	-g string    S3 region
//	-e string    S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-l string    log level
//
// Only these flags are looked at (see flagx.FilterArgs), so other components
// can define their own.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-ga", "-s", "-dir", "-d", "-k", "-t", "-verified", "-cert", "-key",
		"-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "ga", config.EndpointAddrGRPC, "gRPC address and port, empty disables gRPC")
	fs.StringVar(&config.Storage, "s", config.Storage, "storage backend (file, sqlite, postgres, s3)")
	fs.StringVar(&config.DataDir, "dir", config.DataDir, "vault directory for the file backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.BoolVar(&config.RequireVerifiedSession, "verified", config.RequireVerifiedSession, "require a verified TOTP session for password routes")
	fs.StringVar(&config.TLSCertFile, "cert", config.TLSCertFile, "TLS certificate file")
	fs.StringVar(&config.TLSKeyFile, "key", config.TLSKeyFile, "TLS key file")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		}
	})
}
