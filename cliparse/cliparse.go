// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	TokenSecret   string
	TokenTTL      time.Duration
	LogLevel      string
	LogJSON       bool
	RateRPS       float64
	RateBurst     int
	NotifyChannel string
}

// ParseFlags reads flags, then falls back to the environment. A .env file in
// the working directory is loaded first if present; real environment
// variables win over it.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// Missing .env is normal outside development.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("deliberation", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "Participant token secret (prefer env)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 0, "Participant token lifetime")

	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "Emit JSON logs")
	fs.Float64Var(&cfg.RateRPS, "rate-rps", 0, "Voter write requests per second")
	fs.IntVar(&cfg.RateBurst, "rate-burst", 0, "Voter write burst size")
	fs.StringVar(&cfg.NotifyChannel, "notify-channel", "", "Postgres LISTEN/NOTIFY channel")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	}
	if cfg.TokenSecret == "" {
		return Config{}, errors.New("TOKEN_SECRET required")
	}

	if cfg.TokenTTL == 0 {
		if s := os.Getenv("TOKEN_TTL"); s != "" {
			ttl, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, errors.New("invalid TOKEN_TTL env variable")
			}
			cfg.TokenTTL = ttl
		} else {
			cfg.TokenTTL = 12 * time.Hour
		}
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
		if cfg.LogLevel == "" {
			cfg.LogLevel = "info"
		}
	}
	if !cfg.LogJSON {
		if s := os.Getenv("LOG_JSON"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return Config{}, errors.New("invalid LOG_JSON env variable")
			}
			cfg.LogJSON = v
		}
	}

	if cfg.RateRPS == 0 {
		if s := os.Getenv("RATE_RPS"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Config{}, errors.New("invalid RATE_RPS env variable")
			}
			cfg.RateRPS = v
		} else {
			cfg.RateRPS = 10
		}
	}
	if cfg.RateBurst == 0 {
		if s := os.Getenv("RATE_BURST"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid RATE_BURST env variable")
			}
			cfg.RateBurst = v
		} else {
			cfg.RateBurst = 20
		}
	}

	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = os.Getenv("NOTIFY_CHANNEL")
		if cfg.NotifyChannel == "" {
			cfg.NotifyChannel = "deliberation_changes"
		}
	}

	return cfg, nil
}
