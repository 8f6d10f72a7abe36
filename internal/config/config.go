// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Roles the binary can play
const (
	RoleFrontend  = "frontend"
	RoleArchivist = "archivist"
	// both sides in one process
	RoleSchildwaechter = "schildwaechter"
)

// Config is built once in main and handed to every component that needs it
type Config struct {
	AppName  string
	Role     string
	NodeName string
	Version  string
	// shown on the About page
	Owner string

	AppAddr string
	AppPort string
	IntAddr string
	IntPort string

	// outbound API used by the site
	APIBaseURL     string
	ResumePath     string
	BookingPath    string
	RequestTimeout time.Duration

	// archivist side
	PublicURL          string
	ResumeFile         string
	ResumeKey          string
	LinkSigningKey     []byte
	LinkTTL            time.Duration
	RateLimitPerMinute int
	DatabaseURL        string
	AMQPURL            string
	AMQPExchange       string

	// peers allowed to name the visitor in X-Forwarded-For
	TrustedProxies []string

	FlagdHost string
	FlagdPort int

	JSONLogging bool
}

// GetEnv gets an environment variable with a default value
func GetEnv(name string, defaultValue string) string {
	value, exists := os.LookupEnv(name)
	if exists {
		return value
	}
	return defaultValue
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		AppName:      GetEnv("GENTEEL_NAME", "Genteel Folio"),
		Role:         strings.ToLower(GetEnv("GENTEEL_ROLE", RoleFrontend)),
		Version:      GetEnv("GENTEEL_VERSION", "0.0.0"),
		Owner:        GetEnv("GENTEEL_OWNER", "Schildwächter"),
		AppAddr:      GetEnv("APP_ADDR", "0.0.0.0"),
		AppPort:      GetEnv("APP_PORT", "1333"),
		IntAddr:      GetEnv("INT_ADDR", "127.0.0.1"),
		IntPort:      GetEnv("INT_PORT", "1337"),
		APIBaseURL:   strings.TrimRight(GetEnv("API_BASE_URL", "http://127.0.0.1:1333"), "/"),
		ResumePath:   GetEnv("RESUME_PATH", "/api/resume/"),
		BookingPath:  GetEnv("BOOKING_PATH", "/api/book"),
		ResumeFile:   GetEnv("RESUME_FILE", "./assets/resume.pdf"),
		ResumeKey:    GetEnv("RESUME_KEY", "resume.pdf"),
		DatabaseURL:  GetEnv("DATABASE_URL", ""),
		AMQPURL:      GetEnv("AMQP_URL", ""),
		AMQPExchange: GetEnv("AMQP_EXCHANGE", "folio.bookings"),
		FlagdHost:    GetEnv("FLAGD_HOST", ""),
	}
	_, cfg.JSONLogging = os.LookupEnv("JSONLOGGING")

	var err error
	cfg.NodeName, err = os.Hostname()
	if err != nil {
		cfg.NodeName = "unknown_host"
	}

	switch cfg.Role {
	case RoleFrontend, RoleArchivist, RoleSchildwaechter:
	default:
		return Config{}, fmt.Errorf("GENTEEL_ROLE: unknown role %q", cfg.Role)
	}

	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return Config{}, fmt.Errorf("API_BASE_URL: %w", err)
	}
	cfg.PublicURL = strings.TrimRight(GetEnv("PUBLIC_URL", cfg.APIBaseURL), "/")

	if cfg.RequestTimeout, err = time.ParseDuration(GetEnv("REQUEST_TIMEOUT", "10s")); err != nil || cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT: invalid duration")
	}
	if cfg.LinkTTL, err = time.ParseDuration(GetEnv("LINK_TTL", "60s")); err != nil || cfg.LinkTTL < time.Second {
		return Config{}, fmt.Errorf("LINK_TTL: invalid duration")
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(GetEnv("RATE_LIMIT_PER_MINUTE", "5")); err != nil || cfg.RateLimitPerMinute < 1 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_MINUTE: must be a positive integer")
	}
	if cfg.FlagdPort, err = strconv.Atoi(GetEnv("FLAGD_PORT", "8013")); err != nil {
		return Config{}, fmt.Errorf("FLAGD_PORT: %w", err)
	}
	if cfg.FlagdPort < 1 || cfg.FlagdPort > 65535 {
		return Config{}, fmt.Errorf("FLAGD_PORT: %d is not a port", cfg.FlagdPort)
	}

	for _, proxy := range strings.Split(GetEnv("TRUSTED_PROXIES", "127.0.0.1,::1"), ",") {
		if proxy = strings.TrimSpace(proxy); proxy != "" {
			cfg.TrustedProxies = append(cfg.TrustedProxies, proxy)
		}
	}

	// the archivist needs a stable key, otherwise links die with the pod
	signingKey := GetEnv("LINK_SIGNING_KEY", "")
	if signingKey == "" && cfg.ServesArchive() {
		return Config{}, fmt.Errorf("LINK_SIGNING_KEY is required for role %s", cfg.Role)
	}
	cfg.LinkSigningKey = []byte(signingKey)

	return cfg, nil
}

// ServesSite tells whether the portfolio pages are served
func (c Config) ServesSite() bool {
	return c.Role == RoleFrontend || c.Role == RoleSchildwaechter
}

// ServesArchive tells whether the backend API is served
func (c Config) ServesArchive() bool {
	return c.Role == RoleArchivist || c.Role == RoleSchildwaechter
}

// ResumeURL is the endpoint handing out resume links
func (c Config) ResumeURL() string {
	return c.APIBaseURL + c.ResumePath
}

// BookingURL is the endpoint accepting bookings
func (c Config) BookingURL() string {
	return c.APIBaseURL + c.BookingPath
}
