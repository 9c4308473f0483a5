// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is shared by the postgres and sqlite drivers.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table. Used by tests.
func DropSchema(db *sql.DB) error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS phase2_selection;
		DROP TABLE IF EXISTS phase2_ballot;
		DROP TABLE IF EXISTS phase1_vote;
		DROP TABLE IF EXISTS sync_state;
		DROP TABLE IF EXISTS candidate;
		DROP TABLE IF EXISTS session_role;
		DROP TABLE IF EXISTS deliberation_session;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}

const schema = `
-- Sessions
CREATE TABLE IF NOT EXISTS deliberation_session (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'setup' CHECK (status IN ('setup', 'phase1_open', 'phase1_closed', 'phase2_open', 'phase2_closed', 'archived')),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Roles
CREATE TABLE IF NOT EXISTS session_role (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES deliberation_session(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    quota INTEGER NOT NULL CHECK (quota >= 1),
    sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_session_role_session_id ON session_role(session_id);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES deliberation_session(id) ON DELETE CASCADE,
    role_id TEXT NOT NULL REFERENCES session_role(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    slide_order INTEGER NOT NULL DEFAULT 0,
    advanced_to_phase2 BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_candidate_session_id ON candidate(session_id);
CREATE INDEX IF NOT EXISTS idx_candidate_role_id ON candidate(role_id);

-- Shared view state, one row per session
CREATE TABLE IF NOT EXISTS sync_state (
    session_id TEXT PRIMARY KEY REFERENCES deliberation_session(id) ON DELETE CASCADE,
    current_role_id TEXT,
    current_candidate_id TEXT,
    view_mode TEXT NOT NULL DEFAULT 'role_list' CHECK (view_mode IN ('role_list', 'candidate_focus', 'phase2_role_select')),
    updated_by TEXT,
    updated_at TIMESTAMP NOT NULL
);

-- Phase 1 votes
CREATE TABLE IF NOT EXISTS phase1_vote (
    session_id TEXT NOT NULL REFERENCES deliberation_session(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    vote TEXT NOT NULL CHECK (vote IN ('strong_yes', 'yes', 'no')),
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, candidate_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_phase1_vote_candidate_id ON phase1_vote(candidate_id);

-- Phase 2 ballots
CREATE TABLE IF NOT EXISTS phase2_ballot (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES deliberation_session(id) ON DELETE CASCADE,
    role_id TEXT NOT NULL REFERENCES session_role(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    submitted BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (session_id, role_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_phase2_ballot_session_id ON phase2_ballot(session_id);

-- Phase 2 selections
CREATE TABLE IF NOT EXISTS phase2_selection (
    ballot_id TEXT NOT NULL REFERENCES phase2_ballot(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    PRIMARY KEY (ballot_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_phase2_selection_candidate_id ON phase2_selection(candidate_id);
`
