package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:8443", "-ga", ":9090", "-s", "sqlite", "-dir", "/var/lib/vault", "-d", "vault.db",
			"-k", "secret", "-t", "5", "-cert", "cert.pem", "-key", "key.pem",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint", "-l", "debug",
			"-verified",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:            "127.0.0.1:8443",
				EndpointAddrGRPC:            ":9090",
				Storage:                     "sqlite",
				DataDir:                     "/var/lib/vault",
				DatabaseDSN:                 "vault.db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 5 * time.Minute,
				RequireVerifiedSession:      true,
				TLSCertFile:                 "cert.pem",
				TLSKeyFile:                  "key.pem",
				S3RootUser:                  "user",
				S3RootPassword:              "password",
				S3Bucket:                    "bucket",
				S3Region:                    "us-west-1",
				S3BaseEndpoint:              "http://endpoint",
				LogLevel:                    "debug",
			}},
		{name: "unrelated flags ignored", args: []string{"cmd", "-x", "1", "--other=2"},
			expected: &Config{AccessTokenValidityDuration: 90 * time.Second}},
		{name: "bad int", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{AccessTokenValidityDuration: 90 * time.Second}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
