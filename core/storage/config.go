package storage

import "time"

// Config holds configuration for the storage provider.
type Config struct {
	// Enabled turns on run report archiving.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Endpoint is the URL of the storage service.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the access key ID for authentication.
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	// SecretKey is the secret access key for authentication.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	// UseSSL indicates whether to use SSL/TLS for connections.
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// Bucket is the name of the bucket run reports are written to.
	Bucket string `mapstructure:"bucket" default:"discovery-sync"`
	// Region is the location of the bucket (e.g., us-east-1).
	Region string `mapstructure:"region" default:""`
	// Timeout bounds connection setup and the wait for response headers.
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
	// ReportRetention is how many archived reports are kept. Zero keeps all of them.
	ReportRetention int `mapstructure:"report_retention" default:"50"`
}
