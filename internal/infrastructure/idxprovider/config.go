package idxprovider

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Errors for provider configuration
var (
	ErrConfigMissingBaseURL = errors.New("idxprovider: base URL is required")
	ErrConfigInvalidBaseURL = errors.New("idxprovider: base URL must be an absolute http(s) URL")
)

// Config holds the HTTP listing provider settings
type Config struct {
	// Name identifies the provider in status output
	Name string
	// BaseURL is the provider API root, e.g. https://api.example-idx.com/v2
	BaseURL string
	// APIKey is sent as a bearer token when set
	APIKey string
	// ListingsPath is appended to BaseURL for page requests
	ListingsPath string
	// Timeout bounds each HTTP attempt
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RatePerSec and RateBurst pace every attempt, retries included
	RatePerSec float64
	RateBurst  int
	// MaxResponseBytes caps a single page body
	MaxResponseBytes int64
}

// DefaultConfig returns the defaults: three attempts with a 30s timeout each
func DefaultConfig() Config {
	return Config{
		Name:             "idx",
		ListingsPath:     "/properties",
		Timeout:          30 * time.Second,
		RetryMax:         2,
		RetryWaitMin:     500 * time.Millisecond,
		RetryWaitMax:     5 * time.Second,
		RatePerSec:       5,
		RateBurst:        5,
		MaxResponseBytes: 16 << 20,
	}
}

// Validate checks the configuration and fills zero values with defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}

	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.ListingsPath == "" {
		c.ListingsPath = def.ListingsPath
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = def.RetryWaitMin
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		c.RetryWaitMax = c.RetryWaitMin
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = def.MaxResponseBytes
	}
	return nil
}

// listingsURL joins the base URL and listings path
func (c *Config) listingsURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.ListingsPath, "/")
}
