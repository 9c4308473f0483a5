// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Session: a deliberation event and its lifecycle status
  - Role: a position being filled, with a phase 2 quota
  - Candidate: a person evaluated for a role
  - SyncState: the shared "what everyone should be looking at" row
  - Phase1Vote: one user's strong_yes/yes/no on one candidate
  - Phase2Ballot, Phase2Selection: quota-bounded shortlist per role

# Constants

Session status values:

	StatusSetup        = "setup"
	StatusPhase1Open   = "phase1_open"
	StatusPhase1Closed = "phase1_closed"
	StatusPhase2Open   = "phase2_open"
	StatusPhase2Closed = "phase2_closed"
	StatusArchived     = "archived"

View modes:

	ViewRoleList         = "role_list"
	ViewCandidateFocus   = "candidate_focus"
	ViewPhase2RoleSelect = "phase2_role_select"

Participant roles:

	RoleAdmin       = "admin"
	RoleFacilitator = "facilitator"
	RoleVoter       = "voter"

# Errors

errors.go holds the sentinel errors shared by the engines (ErrPhaseClosed,
ErrUnauthenticated, ErrNotFound, ErrTransientIO, ...).
*/
package models
