// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the deliberation API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(st, broker, cfg)

Every API route is wrapped with request logging, metrics, token
authentication and a per-user rate limit. Facilitator routes also require
the facilitator or admin role.

# Endpoints

Operational:

	GET /health
	GET /metrics

Facilitator:

	POST /sessions                    - Create session
	POST /sessions/{id}/roles         - Add role
	POST /sessions/{id}/candidates    - Add candidate
	POST /sessions/{id}/status        - Change status
	POST /sessions/{id}/focus         - Focus a candidate or the role list
	POST /sessions/{id}/step          - Next or previous candidate
	POST /candidates/{id}/advance     - Phase 2 eligibility
	GET  /sessions/{id}/results       - Tallies

Participant:

	GET  /sessions/{id}                              - Session, roles, candidates, view state
	POST /sessions/{id}/votes                        - Cast phase 1 vote
	GET  /sessions/{id}/votes/{candidateId}          - Own vote
	POST /sessions/{id}/roles/{roleId}/selections    - Toggle ballot selection
	POST /sessions/{id}/roles/{roleId}/submit        - Toggle ballot submission
	GET  /sessions/{id}/ballots                      - Own ballots
	GET  /sessions/{id}/live                         - Server-sent event stream
	GET  /sessions/{id}/live/state                   - One-shot reconciled state

The live stream is not rate limited or instrumented per request since it
stays open for the life of the view.
*/
package router
