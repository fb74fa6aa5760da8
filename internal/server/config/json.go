package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
	"gopkg.in/yaml.v3"
)

// JsonConfig is the file representation of Config. It is decoded from JSON,
// or from YAML when the file ends in .yaml/.yml. Durations accept strings
// such as "15m" as well as integer nanoseconds. Absent fields leave the
// current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	Storage                     string         `json:"storage" yaml:"storage"`
	DataDir                     string         `json:"data_dir" yaml:"data_dir"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	TOTPIssuer                  string         `json:"totp_issuer" yaml:"totp_issuer"`
	TOTPSkew                    *uint          `json:"totp_skew" yaml:"totp_skew"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RequireVerifiedSession      *bool          `json:"require_verified_session" yaml:"require_verified_session"`
	TLSCertFile                 string         `json:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile                  string         `json:"tls_key_file" yaml:"tls_key_file"`
	S3RootUser                  string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix                    string         `json:"s3_prefix" yaml:"s3_prefix"`
	S3UsePathStyle              *bool          `json:"s3_use_path_style" yaml:"s3_use_path_style"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
	ShutdownTimeout             timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config into config. Nothing happens
// when no file is given; an unreadable or invalid file panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}
	if err := config.LoadFile(path); err != nil {
		panic(err)
	}
}

// LoadFile overlays config with the JSON or YAML file at path.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	jc := &JsonConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, jc)
	default:
		err = json.Unmarshal(data, jc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	jc.applyTo(c)
	return nil
}

func (jc *JsonConfig) applyTo(c *Config) {
	setString(&c.EndpointAddrHTTP, jc.EndpointAddrHTTP)
	setString(&c.EndpointAddrGRPC, jc.EndpointAddrGRPC)
	setString(&c.Storage, jc.Storage)
	setString(&c.DataDir, jc.DataDir)
	setString(&c.DatabaseDSN, jc.DatabaseDSN)
	setString(&c.TOTPIssuer, jc.TOTPIssuer)
	if jc.TOTPSkew != nil {
		c.TOTPSkew = *jc.TOTPSkew
	}
	setString(&c.SecretKey, jc.SecretKey)
	if jc.AccessTokenValidityDuration.Duration != 0 {
		c.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	}
	if jc.RequireVerifiedSession != nil {
		c.RequireVerifiedSession = *jc.RequireVerifiedSession
	}
	setString(&c.TLSCertFile, jc.TLSCertFile)
	setString(&c.TLSKeyFile, jc.TLSKeyFile)
	setString(&c.S3RootUser, jc.S3RootUser)
	setString(&c.S3RootPassword, jc.S3RootPassword)
	setString(&c.S3Bucket, jc.S3Bucket)
	setString(&c.S3Region, jc.S3Region)
	setString(&c.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&c.S3Prefix, jc.S3Prefix)
	if jc.S3UsePathStyle != nil {
		c.S3UsePathStyle = *jc.S3UsePathStyle
	}
	setString(&c.LogLevel, jc.LogLevel)
	if jc.ShutdownTimeout.Duration != 0 {
		c.ShutdownTimeout = jc.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
