// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the deliberation API.

# Handler Types

Each handler is a thin struct over an engine:

  - SessionHandler: session setup, status changes and facilitator navigation
  - VotingHandler: phase 1 votes and phase 2 ballots
  - ResultsHandler: facilitator tallies
  - LiveHandler: server-sent event stream of reconciled view state

Handlers never read the user id from the request body. It comes from the
identity middleware.Authenticate stored on the context.

# Session Lifecycle

	setup → phase1_open ⇄ phase1_closed → phase2_open ⇄ phase2_closed
	any → archived

	POST /sessions/{id}/status  → SetStatus (rewrites the shared view state)
	POST /sessions/{id}/focus   → SetFocus (candidate_id null returns to the role list)
	POST /sessions/{id}/step    → Step (direction +1 or -1)

# Voting Flow

	POST /sessions/{id}/votes                      → CastVote (phase1_open only)
	POST /sessions/{id}/roles/{roleId}/selections  → ToggleSelection (applied=false when full)
	POST /sessions/{id}/roles/{roleId}/submit      → ToggleSubmit
	GET  /sessions/{id}/ballots                    → MyBallots

# Live View

GET /sessions/{id}/live streams "snapshot" events. Each event's id is the
snapshot sequence number. A reconnecting client gets a fresh subscription
followed by an authoritative pull. GET /sessions/{id}/live/state returns a
single pulled snapshot.
*/
package handlers
