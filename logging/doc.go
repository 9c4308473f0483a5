// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package logging provides structured logging using zerolog.

Call Init once from main with the configured level and format:

	logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})

Components take a child logger so every line carries its origin:

	log := logging.WithComponent("reconciler")
	log.Info().Str("session_id", id).Msg("subscribed")

Console output (JSONOutput=false) is meant for local development.
*/
package logging
