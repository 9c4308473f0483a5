// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/deliberation/models"
)

var (
	ErrInvalidToken = errors.New("invalid token format")
	ErrBadSignature = errors.New("invalid token signature")
	ErrExpiredToken = errors.New("token expired")
)

// Identity is the participant behind a request.
type Identity struct {
	UserID string         `json:"sub"`
	Role   models.AppRole `json:"role"`
}

// Anonymous reports whether the identity carries no user id.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

type claims struct {
	Identity
	ExpiresAt int64 `json:"exp"`
}

// IssueToken signs an identity with HMAC-SHA256. The token is
// base64url(claims) + "." + base64url(signature), without padding.
func IssueToken(id Identity, secret string, ttl time.Duration, now time.Time) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("issue token: %w", models.ErrUnauthenticated)
	}
	if !id.Role.Valid() {
		return "", fmt.Errorf("issue token: unknown role %q", id.Role)
	}

	payload, err := json.Marshal(claims{Identity: id, ExpiresAt: now.Add(ttl).Unix()})
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + sign(body, secret), nil
}

// ParseToken verifies the signature and expiry and returns the identity.
func ParseToken(token, secret string, now time.Time) (Identity, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return Identity{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(sign(body, secret))) {
		return Identity{}, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Identity{}, ErrInvalidToken
	}
	if c.UserID == "" || !c.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	if now.Unix() >= c.ExpiresAt {
		return Identity{}, ErrExpiredToken
	}
	return c.Identity, nil
}

func sign(body, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// TokenSource mints a fresh credential for one identity on every call, so a
// realtime resubscribe never reuses an expired token.
type TokenSource struct {
	Identity Identity
	Secret   string
	TTL      time.Duration
	Now      func() time.Time
}

// Token returns a newly signed token.
func (ts TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := time.Now
	if ts.Now != nil {
		now = ts.Now
	}
	return IssueToken(ts.Identity, ts.Secret, ts.TTL, now())
}

// Verifier returns a function that accepts only valid, unexpired tokens.
func Verifier(secret string) func(credential string) error {
	return func(credential string) error {
		_, err := ParseToken(credential, secret, time.Now())
		return err
	}
}

type ctxKey struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && !id.Anonymous()
}
