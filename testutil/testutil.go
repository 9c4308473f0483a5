// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/deliberation/auth"
	"github.com/danielhkuo/deliberation/cliparse"
	"github.com/danielhkuo/deliberation/db"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/notify"
	"github.com/danielhkuo/deliberation/store"
)

// TestTokenSecret signs participant tokens in tests
const TestTokenSecret = "test-token-secret"

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a different database.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// NewTestStore returns a store over a fresh database that publishes into an
// in-process broker accepting any test token.
func NewTestStore(t *testing.T) (*store.Store, *notify.Broker) {
	t.Helper()

	broker := notify.NewBroker(auth.Verifier(TestTokenSecret))
	t.Cleanup(broker.Close)
	return store.New(SetupTestDB(t), store.SQLite, broker), broker
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseURL:   ":memory:",
		DatabaseType:  "sqlite",
		TokenSecret:   TestTokenSecret,
		TokenTTL:      time.Hour,
		LogLevel:      "error",
		RateRPS:       1000,
		RateBurst:     1000,
		NotifyChannel: "test_changes",
	}
}

// CreateTestSession creates a session and moves it straight to status
// without touching the view state.
func CreateTestSession(t *testing.T, st *store.Store, status models.SessionStatus) models.Session {
	t.Helper()

	ctx := context.Background()
	sess, err := st.CreateSession(ctx, "Test Session", "facilitator-1")
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	if status != models.StatusSetup {
		sess, err = st.UpdateSessionStatus(ctx, sess.ID, status)
		if err != nil {
			t.Fatalf("Failed to set test session status: %v", err)
		}
	}
	return sess
}

// AddTestRole adds a role to a session
func AddTestRole(t *testing.T, st *store.Store, sessionID, name string, quota int) models.Role {
	t.Helper()

	role, err := st.CreateRole(context.Background(), models.Role{SessionID: sessionID, Name: name, Quota: quota})
	if err != nil {
		t.Fatalf("Failed to create test role: %v", err)
	}
	return role
}

// AddTestCandidate adds a candidate to a role
func AddTestCandidate(t *testing.T, st *store.Store, role models.Role, name string, slideOrder int, advanced bool) models.Candidate {
	t.Helper()

	c, err := st.CreateCandidate(context.Background(), models.Candidate{
		SessionID:        role.SessionID,
		RoleID:           role.ID,
		Name:             name,
		SlideOrder:       slideOrder,
		AdvancedToPhase2: advanced,
	})
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return c
}

// TestToken issues a participant token signed with TestTokenSecret
func TestToken(t *testing.T, userID string, role models.AppRole) string {
	t.Helper()

	token, err := auth.IssueToken(auth.Identity{UserID: userID, Role: role}, TestTokenSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// TestTokenSource mints fresh tokens for userID on every call
func TestTokenSource(userID string, role models.AppRole) auth.TokenSource {
	return auth.TokenSource{
		Identity: auth.Identity{UserID: userID, Role: role},
		Secret:   TestTokenSecret,
		TTL:      time.Hour,
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// BearerHeader returns the Authorization header map for a token
func BearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
