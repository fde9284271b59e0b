package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds course backup configuration.
type Config struct {
	// BaseURL is the admin host, e.g. https://academy.example.com.
	BaseURL string
	// SessionCookie is the raw Cookie header carrying the admin session.
	// The tool performs no login of its own.
	SessionCookie string
	PageSize      int
	PoolSize      int
	Timeout       time.Duration
	UserAgent     string
	OutputDir     string
	MetricsAddr   string
	Verbose       bool

	// SectionSliceHead and SectionSliceTail bound the structural slice used
	// to isolate section blocks on a course edit page: that many leading and
	// trailing layout blocks are page chrome, not sections. The defaults
	// match the one markup shape this tool targets and are the most likely
	// thing to break when that markup changes.
	SectionSliceHead int
	SectionSliceTail int
}

// DefaultConfig returns defaults matching the target admin interface.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "",
		SessionCookie:    "",
		PageSize:         100,
		PoolSize:         5,
		Timeout:          30 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputDir:        "output",
		MetricsAddr:      "",
		Verbose:          false,
		SectionSliceHead: 4,
		SectionSliceTail: 2,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.SectionSliceHead < 0 {
		return fmt.Errorf("section slice head cannot be negative")
	}
	if c.SectionSliceTail < 0 {
		return fmt.Errorf("section slice tail cannot be negative")
	}

	return nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
