// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import "github.com/danielhkuo/deliberation/models"

// transitions lists the forward and backward moves a facilitator may issue.
// Archived is reachable from every status and handled separately.
var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.StatusSetup:        {models.StatusPhase1Open},
	models.StatusPhase1Open:   {models.StatusPhase1Closed},
	models.StatusPhase1Closed: {models.StatusPhase1Open, models.StatusPhase2Open},
	models.StatusPhase2Open:   {models.StatusPhase2Closed},
	models.StatusPhase2Closed: {models.StatusPhase2Open},
}

// CanTransition reports whether a session in from may move to to.
// Re-issuing the current status is allowed so a half-applied transition can
// be repaired by repeating it. Archived is terminal, including for itself.
func CanTransition(from, to models.SessionStatus) bool {
	if !from.Valid() || !to.Valid() || from == models.StatusArchived {
		return false
	}
	if from == to || to == models.StatusArchived {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ViewStateFor returns the shared view state that accompanies a move to
// status, starting from the current one. The role focus always survives.
func ViewStateFor(status models.SessionStatus, current models.SyncState) models.SyncState {
	next := models.SyncState{
		SessionID:     current.SessionID,
		CurrentRoleID: current.CurrentRoleID,
		ViewMode:      models.ViewRoleList,
	}

	switch {
	case status.IsPhase2():
		next.ViewMode = models.ViewPhase2RoleSelect
	case status == models.StatusPhase1Closed:
		// Voters keep looking at the candidate whose vote just locked.
		if current.ViewMode == models.ViewCandidateFocus && current.CurrentCandidateID != nil {
			next.ViewMode = models.ViewCandidateFocus
			next.CurrentCandidateID = current.CurrentCandidateID
		}
	}
	return next
}
