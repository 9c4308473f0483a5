// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the deliberation API server.

The server runs facilitated two-phase deliberation sessions: a facilitator
walks the room through candidates for each role while participants cast
strong_yes / yes / no votes, then advanced candidates go onto per-role
ballots limited by a quota. Every connected client follows the facilitator's
view in real time.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=file:deliberation.db TOKEN_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -token-secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - TOKEN_SECRET (-token-secret): HMAC secret for participant tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - TOKEN_TTL (-token-ttl): participant token lifetime (default: 12h)
  - LOG_LEVEL, LOG_JSON: zerolog level and output format
  - RATE_RPS, RATE_BURST: per-user request budget
  - NOTIFY_CHANNEL: PostgreSQL LISTEN/NOTIFY channel

With PostgreSQL, row changes travel through NOTIFY so several server
instances share live state. With SQLite a single process fans them out in
memory.

# Architecture

  - handlers: HTTP request handlers (sessions, voting, results, live)
  - router: Route definitions using Go 1.22+ routing
  - middleware: logging, auth, rate limiting, CORS, JSON helpers
  - session: status state machine and facilitator navigation
  - voting: phase 1 votes, phase 2 ballots, tallies
  - live: view reducer and realtime reconciler
  - notify: change broker and PostgreSQL bridge
  - store: persistence gateway
  - models, auth, db, cliparse, logging, metrics

See package documentation for each component.
*/
package main
