package discovery

import "time"

// Config holds configuration for the upstream discovery API.
type Config struct {
	// BaseURL is the API root, e.g. https://appliance/api/v1.13.
	BaseURL string `mapstructure:"base_url" default:""`
	// Token is sent as a Bearer credential on every request.
	Token string `mapstructure:"token" default:""`
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" default:"false"`
	// Timeout bounds a single request including the body read.
	Timeout time.Duration `mapstructure:"timeout" default:"300s"`
	// MaxRetries is the number of attempts per request.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// RetryDelay is the base delay of the exponential backoff.
	RetryDelay time.Duration `mapstructure:"retry_delay" default:"5s"`
	// Concurrency caps in-flight requests made through the fetch pool.
	Concurrency int `mapstructure:"concurrency" default:"50"`
}
