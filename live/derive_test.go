package live

import (
	"testing"

	"github.com/danielhkuo/deliberation/models"
)

func strPtr(s string) *string { return &s }

func TestDerive(t *testing.T) {
	focus := &models.SyncState{
		SessionID:          "s1",
		CurrentRoleID:      strPtr("r1"),
		CurrentCandidateID: strPtr("c1"),
		ViewMode:           models.ViewCandidateFocus,
	}
	roleList := &models.SyncState{SessionID: "s1", CurrentRoleID: strPtr("r1"), ViewMode: models.ViewRoleList}
	roleSelect := &models.SyncState{SessionID: "s1", CurrentRoleID: strPtr("r1"), ViewMode: models.ViewPhase2RoleSelect}

	testCases := []struct {
		name      string
		status    models.SessionStatus
		sync      *models.SyncState
		phase     Phase
		mode      models.ViewMode
		candidate string
		settled   bool
	}{
		{"setup without row", models.StatusSetup, nil, PhaseIdle, models.ViewRoleList, "", true},
		{"archived with focus", models.StatusArchived, focus, PhaseIdle, models.ViewRoleList, "", false},
		{"phase1 focus", models.StatusPhase1Open, focus, PhaseOne, models.ViewCandidateFocus, "c1", true},
		{"phase1 closed keeps focus", models.StatusPhase1Closed, focus, PhaseOne, models.ViewCandidateFocus, "c1", true},
		{"phase1 role list", models.StatusPhase1Open, roleList, PhaseOne, models.ViewRoleList, "", true},
		{"phase1 with stale phase2 view", models.StatusPhase1Open, roleSelect, PhaseOne, models.ViewRoleList, "", false},
		{"phase2 overrides candidate focus", models.StatusPhase2Open, focus, PhaseTwo, models.ViewPhase2RoleSelect, "", false},
		{"phase2 settled", models.StatusPhase2Closed, roleSelect, PhaseTwo, models.ViewPhase2RoleSelect, "", true},
		{"phase2 without row", models.StatusPhase2Open, nil, PhaseTwo, models.ViewPhase2RoleSelect, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Derive(tc.status, tc.sync)
			if v.Phase != tc.phase {
				t.Errorf("Phase = %s, want %s", v.Phase, tc.phase)
			}
			if v.ViewMode != tc.mode {
				t.Errorf("ViewMode = %s, want %s", v.ViewMode, tc.mode)
			}
			got := ""
			if v.CandidateID != nil {
				got = *v.CandidateID
			}
			if got != tc.candidate {
				t.Errorf("CandidateID = %q, want %q", got, tc.candidate)
			}
			if v.Settled != tc.settled {
				t.Errorf("Settled = %v, want %v", v.Settled, tc.settled)
			}
		})
	}
}

func TestDeriveKeepsRole(t *testing.T) {
	sync := &models.SyncState{SessionID: "s1", CurrentRoleID: strPtr("r2"), ViewMode: models.ViewCandidateFocus, CurrentCandidateID: strPtr("c9")}

	v := Derive(models.StatusPhase2Open, sync)
	if v.RoleID == nil || *v.RoleID != "r2" {
		t.Errorf("RoleID = %v, want r2", v.RoleID)
	}
}

func TestDeriveIsPure(t *testing.T) {
	sync := &models.SyncState{SessionID: "s1", CurrentRoleID: strPtr("r1"), CurrentCandidateID: strPtr("c1"), ViewMode: models.ViewCandidateFocus}
	before := *sync

	first := Derive(models.StatusPhase2Open, sync)
	second := Derive(models.StatusPhase2Open, sync)

	if !sync.SameView(before) {
		t.Error("Derive modified its input")
	}
	if first.Phase != second.Phase || first.ViewMode != second.ViewMode || first.Settled != second.Settled {
		t.Errorf("Derive not deterministic: %+v vs %+v", first, second)
	}
}
