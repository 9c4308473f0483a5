// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/testutil"
)

func newTestRouter(t *testing.T) *http.ServeMux {
	st, broker := testutil.NewTestStore(t)
	return NewRouter(st, broker, testutil.GetTestConfig())
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "deliberation API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "deliberation_") {
		t.Error("Expected deliberation metrics in exposition")
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},
		{"GET", "/metrics"},

		{"POST", "/sessions"},
		{"GET", "/sessions/s1"},
		{"POST", "/sessions/s1/roles"},
		{"POST", "/sessions/s1/candidates"},
		{"POST", "/sessions/s1/status"},
		{"POST", "/sessions/s1/focus"},
		{"POST", "/sessions/s1/step"},
		{"POST", "/candidates/c1/advance"},
		{"GET", "/sessions/s1/results"},

		{"POST", "/sessions/s1/votes"},
		{"GET", "/sessions/s1/votes/c1"},
		{"POST", "/sessions/s1/roles/r1/selections"},
		{"POST", "/sessions/s1/roles/r1/submit"},
		{"GET", "/sessions/s1/ballots"},
		{"GET", "/sessions/s1/live/state"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed || (w.Code == http.StatusNotFound && tc.path != "/") {
				t.Errorf("Route %s %s returned %d, expected route handler to exist", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"DELETE", "/sessions/s1"},
		{"PUT", "/sessions/s1/votes"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestAccessControl(t *testing.T) {
	mux := newTestRouter(t)

	voter := testutil.TestToken(t, "u1", models.RoleVoter)
	facilitator := testutil.TestToken(t, "f1", models.RoleFacilitator)

	testCases := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		headers  map[string]string
		expected int
	}{
		{"no token", "GET", "/sessions/s1", nil, nil, http.StatusUnauthorized},
		{"voter cannot create", "POST", "/sessions", models.CreateSessionRequest{Name: "Board"}, testutil.BearerHeader(voter), http.StatusForbidden},
		{"voter cannot see results", "GET", "/sessions/s1/results", nil, testutil.BearerHeader(voter), http.StatusForbidden},
		{"facilitator creates", "POST", "/sessions", models.CreateSessionRequest{Name: "Board"}, testutil.BearerHeader(facilitator), http.StatusCreated},
		{"voter reads missing session", "GET", "/sessions/missing", nil, testutil.BearerHeader(voter), http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.MakeRequest(tc.method, tc.path, tc.body, tc.headers)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, tc.expected)
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	st, broker := testutil.NewTestStore(t)
	mux := NewRouter(st, broker, testutil.GetTestConfig())

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	cand := testutil.AddTestCandidate(t, st, role, "Ada", 1, false)

	voter := testutil.BearerHeader(testutil.TestToken(t, "u1", models.RoleVoter))

	t.Run("session ID extraction", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("GET", "/sessions/"+sess.ID, nil, voter))

		testutil.AssertStatus(t, w, http.StatusOK)
		var detail models.SessionDetail
		testutil.AssertJSON(t, w, &detail)
		if detail.Session.ID != sess.ID {
			t.Errorf("Expected session %s, got %s", sess.ID, detail.Session.ID)
		}
	})

	t.Run("candidate ID extraction", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("GET", "/sessions/"+sess.ID+"/votes/"+cand.ID, nil, voter))

		testutil.AssertStatus(t, w, http.StatusOK)
		var res models.MyVoteResponse
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.CandidateID != cand.ID {
			t.Errorf("Expected candidate %s, got %s", cand.ID, res.CandidateID)
		}
		if res.Vote != nil {
			t.Errorf("Expected no vote yet, got %s", *res.Vote)
		}
	})
}
