// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

// Engine errors. Callers match with errors.Is; the HTTP layer maps them to
// status codes.
var (
	// ErrUnauthenticated is returned when a mutation is attempted without a user id.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrPhaseClosed is returned when a mutation is attempted outside its phase.
	ErrPhaseClosed = errors.New("phase closed")

	// ErrNotFound is returned when a referenced session, role, candidate or
	// ballot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is reserved for callers that want a signal; ballot
	// toggles report quota rejections through ToggleResult.Applied instead.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTransientIO wraps persistence and network failures. Retryable.
	ErrTransientIO = errors.New("transient io failure")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidVote       = errors.New("invalid vote value")
	ErrIneligible        = errors.New("candidate not eligible")

	// ErrInvalidInput is returned for malformed setup and navigation requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedRow is returned when a stored or notified row fails validation.
	ErrMalformedRow = errors.New("malformed row")
)
