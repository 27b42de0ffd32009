package config

import (
	"fmt"
	"os"
	"strings"
)

// CSRF strategy names accepted in CSRF_MODE.
const (
	ModeDoubleSubmit = "double-submit"
	ModeSameSite     = "samesite"
)

type Config struct {
	Port          string
	Env           string
	CSRFMode      string
	DBSource      string // empty selects the in-memory seeded store
	SecureCookies bool
}

func Load() (*Config, error) {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	mode := strings.ToLower(strings.TrimSpace(os.Getenv("CSRF_MODE")))
	if mode == "" {
		mode = ModeDoubleSubmit
	}
	if mode != ModeDoubleSubmit && mode != ModeSameSite {
		return nil, fmt.Errorf("CSRF_MODE must be %q or %q, got %q", ModeDoubleSubmit, ModeSameSite, mode)
	}

	return &Config{
		Port:          port,
		Env:           env,
		CSRFMode:      mode,
		DBSource:      os.Getenv("DB_SOURCE"),
		SecureCookies: os.Getenv("SECURE_COOKIES") == "true",
	}, nil
}
