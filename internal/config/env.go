package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingStoreURL is returned when CLOUDANT_URL is required but unset.
var ErrMissingStoreURL = errors.New("CLOUDANT_URL must be set")

// Env holds settings read from the process environment.
type Env struct {
	StoreURL          string `env:"CLOUDANT_URL"`
	GreptimeEndpoint  string `env:"GREPTIMEDB_ENDPOINT"`
	GreptimeDatabase  string `env:"GREPTIMEDB_DATABASE" envDefault:"public"`
	GreptimeTable     string `env:"GREPTIMEDB_TABLE"    envDefault:"route_points"`
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"locations"`
	MetricsAddr       string `env:"METRICS_ADDR"`
	LogLevel          string `env:"LOG_LEVEL"           envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT"          envDefault:"text"`
}

// LoadEnv loads .env (ignored if missing) and parses the environment.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// ResolveStoreURL picks the store URL: CLOUDANT_URL wins over the config file.
func ResolveStoreURL(e Env, cfg *PlaybackConfig) (string, error) {
	if e.StoreURL != "" {
		return e.StoreURL, nil
	}
	if cfg != nil && cfg.StoreURL != "" {
		return cfg.StoreURL, nil
	}
	return "", ErrMissingStoreURL
}
