// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded with godotenv before flags
are read. Variables already set in the environment are not overwritten.

# CLI Flags and Environment Variables

	-p               PORT            Server port (default 3318)
	-d               DATABASE_URL    Database URL (required)
	-t               DATABASE_TYPE   sqlite or postgres (default sqlite)
	-token-secret    TOKEN_SECRET    Participant token HMAC secret (required)
	-token-ttl       TOKEN_TTL       Token lifetime (default 12h)
	-log-level       LOG_LEVEL       debug, info, warn, error (default info)
	-log-json        LOG_JSON        JSON log output
	-rate-rps        RATE_RPS        Voter writes per second per identity (default 10)
	-rate-burst      RATE_BURST      Voter write burst (default 20)
	-notify-channel  NOTIFY_CHANNEL  Postgres LISTEN channel (default deliberation_changes)

CLI flags take precedence over environment variables.
*/
package cliparse
