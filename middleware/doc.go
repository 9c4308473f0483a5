// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Assigns or propagates X-Request-ID and logs one structured line per request
with status, bytes and latency. 4xx logs at warn, 5xx at error.

# Authentication

Authenticate verifies a signed participant token from the Authorization
bearer header, the X-Participant-Token header or the token query parameter
(for EventSource clients) and stores the identity on the context:

	authn := middleware.Authenticate(cfg.TokenSecret)
	mux.HandleFunc("POST /api/sessions", authn(middleware.RequireFacilitator(h.Create)))

# Errors

WriteError maps engine errors to status codes:

	ErrUnauthenticated                      401
	ErrForbidden                            403
	ErrNotFound                             404
	ErrPhaseClosed, ErrInvalidTransition    409
	ErrInvalidVote, ErrIneligible,
	ErrInvalidInput                         400
	ErrTransientIO                          503 with Retry-After

# Rate Limiting

RateLimiter keeps a token bucket per user (or per IP for anonymous
callers) and answers 429 with Retry-After when a bucket is empty.

# CORS, JSON and Client IP

	server := http.Server{Handler: middleware.CORS(mux)}
	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	ip := middleware.GetClientIP(r)
*/
package middleware
