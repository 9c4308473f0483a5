// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).

# Tables

  - deliberation_session: session metadata and lifecycle status
  - session_role: roles with phase 2 quota and sort order
  - candidate: candidates per role, slide order, phase 2 eligibility
  - sync_state: shared view state, one row per session
  - phase1_vote: one vote per (session, candidate, user)
  - phase2_ballot: one ballot per (session, role, user)
  - phase2_selection: ballot membership edges

# Relationships

	deliberation_session 1──1 sync_state
	deliberation_session 1──* session_role 1──* candidate
	candidate 1──* phase1_vote
	session_role 1──* phase2_ballot 1──* phase2_selection *──1 candidate

All foreign keys use ON DELETE CASCADE.

# Uniqueness

The UNIQUE (session_id, role_id, user_id) constraint on phase2_ballot is what
makes concurrent first-toggle ballot creation collapse to a single row.
*/
package db
