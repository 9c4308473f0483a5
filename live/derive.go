// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import "github.com/danielhkuo/deliberation/models"

// Phase is the coarse stage a client renders.
type Phase string

const (
	PhaseIdle Phase = "idle"
	PhaseOne  Phase = "phase1"
	PhaseTwo  Phase = "phase2"
)

// DerivedView is what a client should render for one (status, sync state)
// pair.
type DerivedView struct {
	Phase       Phase           `json:"phase"`
	ViewMode    models.ViewMode `json:"view_mode"`
	RoleID      *string         `json:"role_id"`
	CandidateID *string         `json:"candidate_id"`

	// Settled is false while the sync state still reflects a different phase
	// than the session status, e.g. the status write landed but the view
	// state write has not yet. Status wins in the meantime.
	Settled bool `json:"settled"`
}

// Derive maps the authoritative status and the shared view state to the
// client view. It has no side effects; push events, manual refreshes and
// the initial load all go through it. sync may be nil when no row exists.
func Derive(status models.SessionStatus, sync *models.SyncState) DerivedView {
	view := DerivedView{Phase: PhaseIdle, ViewMode: models.ViewRoleList, Settled: true}
	if sync != nil {
		view.RoleID = sync.CurrentRoleID
	}

	switch {
	case status.IsPhase2():
		view.Phase = PhaseTwo
		view.ViewMode = models.ViewPhase2RoleSelect
		view.Settled = sync == nil || sync.ViewMode == models.ViewPhase2RoleSelect
	case status.IsPhase1():
		view.Phase = PhaseOne
		if sync != nil && sync.ViewMode == models.ViewCandidateFocus && sync.CurrentCandidateID != nil {
			view.ViewMode = models.ViewCandidateFocus
			view.CandidateID = sync.CurrentCandidateID
		}
		view.Settled = sync == nil || sync.ViewMode != models.ViewPhase2RoleSelect
	default:
		view.Settled = sync == nil || sync.ViewMode == models.ViewRoleList
	}
	return view
}
