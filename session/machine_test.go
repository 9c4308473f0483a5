// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"testing"

	"github.com/danielhkuo/deliberation/models"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from, to models.SessionStatus
		want     bool
	}{
		{models.StatusSetup, models.StatusPhase1Open, true},
		{models.StatusSetup, models.StatusPhase2Open, false},
		{models.StatusPhase1Open, models.StatusPhase1Closed, true},
		{models.StatusPhase1Closed, models.StatusPhase1Open, true},
		{models.StatusPhase1Open, models.StatusPhase2Open, false},
		{models.StatusPhase1Closed, models.StatusPhase2Open, true},
		{models.StatusPhase2Open, models.StatusPhase2Closed, true},
		{models.StatusPhase2Closed, models.StatusPhase2Open, true},
		{models.StatusPhase2Open, models.StatusPhase1Open, false},
		{models.StatusPhase2Closed, models.StatusSetup, false},
		{models.StatusSetup, models.StatusArchived, true},
		{models.StatusPhase2Closed, models.StatusArchived, true},
		{models.StatusArchived, models.StatusSetup, false},
		{models.StatusArchived, models.StatusPhase1Open, false},
		{models.StatusPhase1Open, models.StatusPhase1Open, true},
		{models.StatusArchived, models.StatusArchived, false},
		{models.StatusSetup, "paused", false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestViewStateFor(t *testing.T) {
	role := "r1"
	cand := "c1"
	focused := models.SyncState{
		SessionID:          "s1",
		CurrentRoleID:      &role,
		CurrentCandidateID: &cand,
		ViewMode:           models.ViewCandidateFocus,
	}
	listing := models.SyncState{SessionID: "s1", CurrentRoleID: &role, ViewMode: models.ViewRoleList}

	testCases := []struct {
		name          string
		status        models.SessionStatus
		current       models.SyncState
		wantMode      models.ViewMode
		wantCandidate bool
	}{
		{"phase1 open clears focus", models.StatusPhase1Open, focused, models.ViewRoleList, false},
		{"phase1 closed keeps focus", models.StatusPhase1Closed, focused, models.ViewCandidateFocus, true},
		{"phase1 closed from role list", models.StatusPhase1Closed, listing, models.ViewRoleList, false},
		{"phase2 open", models.StatusPhase2Open, focused, models.ViewPhase2RoleSelect, false},
		{"phase2 closed", models.StatusPhase2Closed, listing, models.ViewPhase2RoleSelect, false},
		{"setup", models.StatusSetup, focused, models.ViewRoleList, false},
		{"archived", models.StatusArchived, focused, models.ViewRoleList, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ViewStateFor(tc.status, tc.current)

			if got.ViewMode != tc.wantMode {
				t.Errorf("ViewMode = %s, want %s", got.ViewMode, tc.wantMode)
			}
			if (got.CurrentCandidateID != nil) != tc.wantCandidate {
				t.Errorf("CurrentCandidateID = %v, want set=%v", got.CurrentCandidateID, tc.wantCandidate)
			}
			if got.CurrentRoleID == nil || *got.CurrentRoleID != role {
				t.Errorf("role focus lost: %v", got.CurrentRoleID)
			}
			if got.SessionID != "s1" {
				t.Errorf("SessionID = %q, want s1", got.SessionID)
			}
		})
	}
}
