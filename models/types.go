package models

import "time"

// SessionStatus is the authoritative phase of a deliberation session.
type SessionStatus string

// Session status constants
const (
	StatusSetup        SessionStatus = "setup"
	StatusPhase1Open   SessionStatus = "phase1_open"
	StatusPhase1Closed SessionStatus = "phase1_closed"
	StatusPhase2Open   SessionStatus = "phase2_open"
	StatusPhase2Closed SessionStatus = "phase2_closed"
	StatusArchived     SessionStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusSetup, StatusPhase1Open, StatusPhase1Closed,
		StatusPhase2Open, StatusPhase2Closed, StatusArchived:
		return true
	}
	return false
}

func (s SessionStatus) IsPhase1() bool {
	return s == StatusPhase1Open || s == StatusPhase1Closed
}

func (s SessionStatus) IsPhase2() bool {
	return s == StatusPhase2Open || s == StatusPhase2Closed
}

// ViewMode is what every live viewer should currently render.
type ViewMode string

// View mode constants
const (
	ViewRoleList         ViewMode = "role_list"
	ViewCandidateFocus   ViewMode = "candidate_focus"
	ViewPhase2RoleSelect ViewMode = "phase2_role_select"
)

func (v ViewMode) Valid() bool {
	switch v {
	case ViewRoleList, ViewCandidateFocus, ViewPhase2RoleSelect:
		return true
	}
	return false
}

// VoteValue is a single phase 1 vote.
type VoteValue string

// Vote value constants
const (
	VoteStrongYes VoteValue = "strong_yes"
	VoteYes       VoteValue = "yes"
	VoteNo        VoteValue = "no"
)

func (v VoteValue) Valid() bool {
	return v == VoteStrongYes || v == VoteYes || v == VoteNo
}

// AppRole classifies a participant.
type AppRole string

// Participant roles
const (
	RoleAdmin       AppRole = "admin"
	RoleFacilitator AppRole = "facilitator"
	RoleVoter       AppRole = "voter"
)

func (r AppRole) Valid() bool {
	return r == RoleAdmin || r == RoleFacilitator || r == RoleVoter
}

// CanFacilitate reports whether the role may drive a session.
func (r AppRole) CanFacilitate() bool {
	return r == RoleAdmin || r == RoleFacilitator
}

// Domain types

type Session struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Role struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Quota     int    `json:"quota"`
	SortOrder int    `json:"sort_order"`
}

type Candidate struct {
	ID               string  `json:"id"`
	SessionID        string  `json:"session_id"`
	RoleID           string  `json:"role_id"`
	Name             string  `json:"name"`
	SlideOrder       int     `json:"slide_order"`
	AdvancedToPhase2 bool    `json:"advanced_to_phase2"`
	Notes            *string `json:"notes,omitempty"`
}

// SyncState is the shared per-session view state. One row per session.
type SyncState struct {
	SessionID          string    `json:"session_id"`
	CurrentRoleID      *string   `json:"current_role_id"`
	CurrentCandidateID *string   `json:"current_candidate_id"`
	ViewMode           ViewMode  `json:"view_mode"`
	UpdatedBy          *string   `json:"updated_by"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SameView reports whether two sync states point every viewer at the same thing.
func (s SyncState) SameView(o SyncState) bool {
	return s.ViewMode == o.ViewMode &&
		ptrEqual(s.CurrentRoleID, o.CurrentRoleID) &&
		ptrEqual(s.CurrentCandidateID, o.CurrentCandidateID)
}

type Phase1Vote struct {
	SessionID   string    `json:"session_id"`
	CandidateID string    `json:"candidate_id"`
	UserID      string    `json:"-"`
	Value       VoteValue `json:"vote"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Phase2Ballot struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	RoleID    string    `json:"role_id"`
	UserID    string    `json:"-"`
	Submitted bool      `json:"submitted"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Phase2Selection struct {
	BallotID    string `json:"ballot_id"`
	CandidateID string `json:"candidate_id"`
}

// ToggleResult reports the outcome of a ballot selection toggle.
// Applied is false when the toggle was a quota no-op.
type ToggleResult struct {
	BallotID    string `json:"ballot_id"`
	CandidateID string `json:"candidate_id"`
	Selected    bool   `json:"selected"`
	Applied     bool   `json:"applied"`
	Count       int    `json:"count"`
	Quota       int    `json:"quota"`
}

// RoleBallot is one role's phase 2 ballot as seen by its owner.
type RoleBallot struct {
	Role         Role        `json:"role"`
	BallotID     *string     `json:"ballot_id"`
	Submitted    bool        `json:"submitted"`
	SelectedIDs  []string    `json:"selected_ids"`
	Eligible     []Candidate `json:"eligible"`
	QuotaReached bool        `json:"quota_reached"`
}

// Request types

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type AddRoleRequest struct {
	Name      string `json:"name"`
	Quota     int    `json:"quota"`
	SortOrder int    `json:"sort_order"`
}

type AddCandidateRequest struct {
	RoleID     string  `json:"role_id"`
	Name       string  `json:"name"`
	SlideOrder int     `json:"slide_order"`
	Notes      *string `json:"notes,omitempty"`
}

type SetStatusRequest struct {
	Status SessionStatus `json:"status"`
}

type SetFocusRequest struct {
	RoleID      string  `json:"role_id"`
	CandidateID *string `json:"candidate_id"`
}

// Direction is +1 for next, -1 for previous.
type StepRequest struct {
	Direction int `json:"direction"`
}

type SetAdvancedRequest struct {
	Advanced bool `json:"advanced"`
}

type CastVoteRequest struct {
	CandidateID string    `json:"candidate_id"`
	Vote        VoteValue `json:"vote"`
}

type ToggleSelectionRequest struct {
	CandidateID string `json:"candidate_id"`
}

// Response types

type SessionDetail struct {
	Session    Session     `json:"session"`
	Roles      []Role      `json:"roles"`
	Candidates []Candidate `json:"candidates"`
	Sync       *SyncState  `json:"sync"`
}

// StatusResponse is the result of a facilitator status change.
type StatusResponse struct {
	Session Session   `json:"session"`
	Sync    SyncState `json:"sync"`
}

type MyVoteResponse struct {
	CandidateID string     `json:"candidate_id"`
	Vote        *VoteValue `json:"vote"`
}

type SubmitResponse struct {
	BallotID  string `json:"ballot_id"`
	Submitted bool   `json:"submitted"`
}

// Result types

type Phase1Tally struct {
	CandidateID      string  `json:"candidate_id"`
	CandidateName    string  `json:"candidate_name"`
	RoleID           string  `json:"role_id"`
	RoleName         string  `json:"role_name"`
	StrongYes        int     `json:"strong_yes"`
	Yes              int     `json:"yes"`
	No               int     `json:"no"`
	PercentYes       float64 `json:"percent_yes"`
	PercentStrongYes float64 `json:"percent_strong_yes"`
	PercentPlainYes  float64 `json:"percent_plain_yes"`
	PercentNo        float64 `json:"percent_no"`
	AdvancedToPhase2 bool    `json:"advanced_to_phase2"`
}

type Phase2Tally struct {
	CandidateID    string `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	RoleID         string `json:"role_id"`
	RoleName       string `json:"role_name"`
	InclusionVotes int    `json:"inclusion_votes"`
}

type SubmissionCount struct {
	RoleID         string `json:"role_id"`
	RoleName       string `json:"role_name"`
	SubmittedCount int    `json:"submitted_count"`
	TotalCount     int    `json:"total_count"`
}

type SessionResults struct {
	SessionID   string            `json:"session_id"`
	Status      SessionStatus     `json:"status"`
	Phase1      []Phase1Tally     `json:"phase1"`
	Phase2      []Phase2Tally     `json:"phase2"`
	Submissions []SubmissionCount `json:"submissions"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
