// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session owns the session lifecycle and the facilitator's control of
the shared view.

# Lifecycle

	setup → phase1_open ⇄ phase1_closed → phase2_open ⇄ phase2_closed
	                 any status → archived (terminal)

CanTransition encodes the table. Repeating the current status is accepted;
it rewrites the view state without touching the status row.

# View state policy

ViewStateFor computes the sync state that accompanies a status change:

  - phase2_open, phase2_closed: phase2_role_select, no candidate
  - phase1_closed: candidate focus kept if present, otherwise role_list
  - phase1_open, setup, archived: role_list, no candidate

The current role is always kept.

# Controller

Controller is the facilitator control surface: SetStatus, SetFocusedCandidate,
StepCandidate and SetAdvancedToPhase2, plus the setup operations that create
sessions, roles and candidates. It writes only through the Store interface,
which *store.Store satisfies.
*/
package session
