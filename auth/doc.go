// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth is the identity provider boundary.

Identity issuance lives outside this service; what arrives here is a signed
participant token carrying an opaque user id and an app role
(admin/facilitator/voter).

# Tokens

Tokens use HMAC-SHA256 over a base64url JSON claim set:

	token, err := auth.IssueToken(auth.Identity{UserID: "u1", Role: models.RoleVoter}, secret, time.Hour, time.Now())
	id, err := auth.ParseToken(token, secret, time.Now())

ParseToken rejects bad signatures (ErrBadSignature), malformed tokens
(ErrInvalidToken) and expired tokens (ErrExpiredToken).

# Realtime credentials

TokenSource mints a new token on every call. Live views ask it for a
credential before each (re)subscribe, and the notification broker checks it
with Verifier.

# Request context

Middleware stores the parsed identity with WithIdentity; handlers read it
back with FromContext. An anonymous identity is reported as absent.
*/
package auth
