// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielhkuo/deliberation/models"
)

// This file is the single translation point between stored or notified row
// shapes and domain records. Anything that fails validation here is reported
// as models.ErrMalformedRow and never reaches the engines.

type scanner interface {
	Scan(dest ...any) error
}

func malformed(kind, reason string) error {
	return fmt.Errorf("%s: %s: %w", kind, reason, models.ErrMalformedRow)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

const sessionColumns = `id, name, status, created_at, updated_at`

func scanSession(row scanner) (models.Session, error) {
	var s models.Session
	var status string
	if err := row.Scan(&s.ID, &s.Name, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return models.Session{}, err
	}
	s.Status = models.SessionStatus(status)
	return s, validateSession(s)
}

func validateSession(s models.Session) error {
	if s.ID == "" {
		return malformed("session", "missing id")
	}
	if !s.Status.Valid() {
		return malformed("session", "unknown status "+string(s.Status))
	}
	return nil
}

const roleColumns = `id, session_id, name, quota, sort_order`

func scanRole(row scanner) (models.Role, error) {
	var r models.Role
	if err := row.Scan(&r.ID, &r.SessionID, &r.Name, &r.Quota, &r.SortOrder); err != nil {
		return models.Role{}, err
	}
	if r.Quota < 1 {
		return models.Role{}, malformed("role", "quota must be positive")
	}
	return r, nil
}

const candidateColumns = `id, session_id, role_id, name, slide_order, advanced_to_phase2, notes`

func scanCandidate(row scanner) (models.Candidate, error) {
	var c models.Candidate
	var notes sql.NullString
	if err := row.Scan(&c.ID, &c.SessionID, &c.RoleID, &c.Name, &c.SlideOrder, &c.AdvancedToPhase2, &notes); err != nil {
		return models.Candidate{}, err
	}
	c.Notes = nullString(notes)
	return c, nil
}

const syncColumns = `session_id, current_role_id, current_candidate_id, view_mode, updated_by, updated_at`

func scanSyncState(row scanner) (models.SyncState, error) {
	var st models.SyncState
	var roleID, candidateID, updatedBy sql.NullString
	var viewMode string
	if err := row.Scan(&st.SessionID, &roleID, &candidateID, &viewMode, &updatedBy, &st.UpdatedAt); err != nil {
		return models.SyncState{}, err
	}
	st.CurrentRoleID = nullString(roleID)
	st.CurrentCandidateID = nullString(candidateID)
	st.UpdatedBy = nullString(updatedBy)
	st.ViewMode = models.ViewMode(viewMode)
	return st, validateSyncState(st)
}

func validateSyncState(st models.SyncState) error {
	if st.SessionID == "" {
		return malformed("sync_state", "missing session_id")
	}
	if !st.ViewMode.Valid() {
		return malformed("sync_state", "unknown view_mode "+string(st.ViewMode))
	}
	if st.ViewMode == models.ViewCandidateFocus && st.CurrentCandidateID == nil {
		return malformed("sync_state", "candidate_focus without candidate")
	}
	return nil
}

const voteColumns = `session_id, candidate_id, user_id, vote, updated_at`

func scanVote(row scanner) (models.Phase1Vote, error) {
	var v models.Phase1Vote
	var value string
	if err := row.Scan(&v.SessionID, &v.CandidateID, &v.UserID, &value, &v.UpdatedAt); err != nil {
		return models.Phase1Vote{}, err
	}
	v.Value = models.VoteValue(value)
	if !v.Value.Valid() {
		return models.Phase1Vote{}, malformed("phase1_vote", "unknown vote "+value)
	}
	return v, nil
}

const ballotColumns = `id, session_id, role_id, user_id, submitted, updated_at`

func scanBallot(row scanner) (models.Phase2Ballot, error) {
	var b models.Phase2Ballot
	if err := row.Scan(&b.ID, &b.SessionID, &b.RoleID, &b.UserID, &b.Submitted, &b.UpdatedAt); err != nil {
		return models.Phase2Ballot{}, err
	}
	return b, nil
}

// DecodeSyncState translates a notified sync_state row image.
func DecodeSyncState(raw json.RawMessage) (models.SyncState, error) {
	if len(raw) == 0 {
		return models.SyncState{}, malformed("sync_state", "empty row image")
	}
	var st models.SyncState
	if err := json.Unmarshal(raw, &st); err != nil {
		return models.SyncState{}, malformed("sync_state", err.Error())
	}
	if st.ViewMode == "" {
		st.ViewMode = models.ViewRoleList
	}
	return st, validateSyncState(st)
}

// DecodeSession translates a notified deliberation_session row image.
func DecodeSession(raw json.RawMessage) (models.Session, error) {
	if len(raw) == 0 {
		return models.Session{}, malformed("session", "empty row image")
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Session{}, malformed("session", err.Error())
	}
	return s, validateSession(s)
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
