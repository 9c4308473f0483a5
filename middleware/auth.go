// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/deliberation/auth"
	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/notify"
)

// TokenHeader is the alternative to a bearer Authorization header.
const TokenHeader = "X-Participant-Token"

// tokenQueryParam is accepted for EventSource clients, which cannot set
// headers.
const tokenQueryParam = "token"

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get(tokenQueryParam)
}

// Authenticate verifies the participant token and stores the identity on
// the request context. Requests without a valid token get 401.
func Authenticate(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				ErrorResponse(w, http.StatusUnauthorized, "participant token required")
				return
			}

			id, err := auth.ParseToken(token, secret, time.Now())
			if err != nil {
				ErrorResponse(w, http.StatusUnauthorized, err.Error())
				return
			}

			next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		}
	}
}

// RequireFacilitator rejects callers whose role may not drive a session.
// It must run after Authenticate.
func RequireFacilitator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok || id.Anonymous() {
			WriteError(w, r, models.ErrUnauthenticated)
			return
		}
		if !id.Role.CanFacilitate() {
			WriteError(w, r, models.ErrForbidden)
			return
		}
		next(w, r)
	}
}

// Identity returns the authenticated caller, or the zero identity.
func Identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, notify.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPhaseClosed), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidVote), errors.Is(err, models.ErrIneligible), errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrTransientIO):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error with the mapped status. Server-side
// failures are logged and their detail is not returned.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Logger.Error().
			Err(err).
			Str("request_id", RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")

		msg := "internal error"
		if status == http.StatusServiceUnavailable {
			msg = "temporarily unavailable, retry"
			w.Header().Set("Retry-After", "1")
		}
		ErrorResponse(w, status, msg)
		return
	}
	ErrorResponse(w, status, err.Error())
}
