// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/metrics"
	"github.com/danielhkuo/deliberation/models"
)

// Store is the slice of the persistence gateway the controller writes through.
type Store interface {
	CreateSession(ctx context.Context, name, createdBy string) (models.Session, error)
	GetSession(ctx context.Context, id string) (models.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) (models.Session, error)

	CreateRole(ctx context.Context, r models.Role) (models.Role, error)
	GetRole(ctx context.Context, id string) (models.Role, error)
	ListRoles(ctx context.Context, sessionID string) ([]models.Role, error)

	CreateCandidate(ctx context.Context, c models.Candidate) (models.Candidate, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, error)
	ListCandidates(ctx context.Context, sessionID string) ([]models.Candidate, error)
	ListRoleCandidates(ctx context.Context, roleID string) ([]models.Candidate, error)
	SetAdvancedToPhase2(ctx context.Context, id string, advanced bool) (models.Candidate, error)

	GetSyncState(ctx context.Context, sessionID string) (models.SyncState, error)
	UpsertSyncState(ctx context.Context, st models.SyncState) (models.SyncState, error)
}

// Controller carries out facilitator actions. It is the only writer of
// session status and shared view state.
type Controller struct {
	store  Store
	logger zerolog.Logger
}

func NewController(st Store) *Controller {
	return &Controller{
		store:  st,
		logger: logging.WithComponent("session"),
	}
}

// Setup

func (c *Controller) CreateSession(ctx context.Context, name, actor string) (models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Session{}, fmt.Errorf("session name required: %w", models.ErrInvalidInput)
	}
	sess, err := c.store.CreateSession(ctx, name, actor)
	if err != nil {
		return models.Session{}, err
	}
	c.logger.Info().Str("session_id", sess.ID).Str("actor", actor).Msg("session created")
	return sess, nil
}

// GetSession returns the session with its roles, candidates and view state.
func (c *Controller) GetSession(ctx context.Context, sessionID string) (models.SessionDetail, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SessionDetail{}, err
	}
	roles, err := c.store.ListRoles(ctx, sessionID)
	if err != nil {
		return models.SessionDetail{}, err
	}
	candidates, err := c.store.ListCandidates(ctx, sessionID)
	if err != nil {
		return models.SessionDetail{}, err
	}

	detail := models.SessionDetail{Session: sess, Roles: roles, Candidates: candidates}
	sync, err := c.store.GetSyncState(ctx, sessionID)
	switch {
	case err == nil:
		detail.Sync = &sync
	case !errors.Is(err, models.ErrNotFound):
		return models.SessionDetail{}, err
	}
	return detail, nil
}

func (c *Controller) AddRole(ctx context.Context, sessionID string, req models.AddRoleRequest) (models.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Role{}, fmt.Errorf("role name required: %w", models.ErrInvalidInput)
	}
	if req.Quota < 1 {
		return models.Role{}, fmt.Errorf("quota must be at least 1: %w", models.ErrInvalidInput)
	}
	if _, err := c.editableSession(ctx, sessionID); err != nil {
		return models.Role{}, err
	}

	return c.store.CreateRole(ctx, models.Role{
		SessionID: sessionID,
		Name:      name,
		Quota:     req.Quota,
		SortOrder: req.SortOrder,
	})
}

func (c *Controller) AddCandidate(ctx context.Context, sessionID string, req models.AddCandidateRequest) (models.Candidate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Candidate{}, fmt.Errorf("candidate name required: %w", models.ErrInvalidInput)
	}
	if _, err := c.editableSession(ctx, sessionID); err != nil {
		return models.Candidate{}, err
	}
	if _, err := c.sessionRole(ctx, sessionID, req.RoleID); err != nil {
		return models.Candidate{}, err
	}

	return c.store.CreateCandidate(ctx, models.Candidate{
		SessionID:  sessionID,
		RoleID:     req.RoleID,
		Name:       name,
		SlideOrder: req.SlideOrder,
		Notes:      req.Notes,
	})
}

// Phase control

// SetStatus moves the session to next and rewrites the shared view state to
// match. The two writes are separate; repeating the call repairs a session
// whose view state write was lost.
func (c *Controller) SetStatus(ctx context.Context, sessionID string, next models.SessionStatus, actor string) (models.StatusResponse, error) {
	if !next.Valid() {
		return models.StatusResponse{}, fmt.Errorf("unknown status %q: %w", next, models.ErrInvalidTransition)
	}

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.StatusResponse{}, err
	}
	if !CanTransition(sess.Status, next) {
		return models.StatusResponse{}, fmt.Errorf("%s -> %s: %w", sess.Status, next, models.ErrInvalidTransition)
	}

	if sess.Status != next {
		sess, err = c.store.UpdateSessionStatus(ctx, sessionID, next)
		if err != nil {
			return models.StatusResponse{}, err
		}
		metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
	}

	current, err := c.store.GetSyncState(ctx, sessionID)
	if errors.Is(err, models.ErrNotFound) {
		current = models.SyncState{SessionID: sessionID}
	} else if err != nil {
		return models.StatusResponse{}, err
	}

	view := ViewStateFor(next, current)
	view.UpdatedBy = actorPtr(actor)
	view, err = c.store.UpsertSyncState(ctx, view)
	if err != nil {
		return models.StatusResponse{}, err
	}

	c.logger.Info().
		Str("session_id", sessionID).
		Str("status", string(next)).
		Str("view_mode", string(view.ViewMode)).
		Str("actor", actor).
		Msg("session status set")
	return models.StatusResponse{Session: sess, Sync: view}, nil
}

// SetFocusedCandidate points every viewer at a role and, during phase 1, at
// one of its candidates. A nil candidate returns viewers to the role list, or
// to the ballot picker in phase 2.
func (c *Controller) SetFocusedCandidate(ctx context.Context, sessionID, roleID string, candidateID *string, actor string) (models.SyncState, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SyncState{}, err
	}
	if sess.Status == models.StatusArchived {
		return models.SyncState{}, fmt.Errorf("session archived: %w", models.ErrPhaseClosed)
	}
	if _, err := c.sessionRole(ctx, sessionID, roleID); err != nil {
		return models.SyncState{}, err
	}

	view := models.SyncState{
		SessionID:     sessionID,
		CurrentRoleID: &roleID,
		ViewMode:      models.ViewRoleList,
		UpdatedBy:     actorPtr(actor),
	}

	switch {
	case candidateID != nil:
		if !sess.Status.IsPhase1() {
			return models.SyncState{}, fmt.Errorf("candidate focus in %s: %w", sess.Status, models.ErrPhaseClosed)
		}
		cand, err := c.store.GetCandidate(ctx, *candidateID)
		if err != nil {
			return models.SyncState{}, err
		}
		if cand.SessionID != sessionID || cand.RoleID != roleID {
			return models.SyncState{}, fmt.Errorf("candidate %s not in role %s: %w", cand.ID, roleID, models.ErrNotFound)
		}
		view.ViewMode = models.ViewCandidateFocus
		view.CurrentCandidateID = &cand.ID
	case sess.Status.IsPhase2():
		view.ViewMode = models.ViewPhase2RoleSelect
	}

	return c.store.UpsertSyncState(ctx, view)
}

// StepCandidate moves the focus to the next (direction > 0) or previous
// candidate of the current role by slide order. Stepping past either end
// leaves the view untouched. Next from the role list focuses the first
// candidate.
func (c *Controller) StepCandidate(ctx context.Context, sessionID string, direction int, actor string) (models.SyncState, error) {
	if direction == 0 {
		return models.SyncState{}, fmt.Errorf("direction must be non-zero: %w", models.ErrInvalidInput)
	}
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SyncState{}, err
	}
	if !sess.Status.IsPhase1() {
		return models.SyncState{}, fmt.Errorf("step in %s: %w", sess.Status, models.ErrPhaseClosed)
	}

	current, err := c.store.GetSyncState(ctx, sessionID)
	if err != nil {
		return models.SyncState{}, err
	}
	if current.CurrentRoleID == nil {
		return models.SyncState{}, fmt.Errorf("no role selected: %w", models.ErrInvalidInput)
	}

	candidates, err := c.store.ListRoleCandidates(ctx, *current.CurrentRoleID)
	if err != nil {
		return models.SyncState{}, err
	}

	index := -1
	if current.CurrentCandidateID != nil {
		for i, cand := range candidates {
			if cand.ID == *current.CurrentCandidateID {
				index = i
				break
			}
		}
	}

	target := index + 1
	if direction < 0 {
		target = index - 1
	}
	if target < 0 || target >= len(candidates) {
		return current, nil
	}

	return c.SetFocusedCandidate(ctx, sessionID, *current.CurrentRoleID, &candidates[target].ID, actor)
}

// SetAdvancedToPhase2 marks a candidate as eligible (or not) for phase 2
// ballots. Archived sessions are frozen.
func (c *Controller) SetAdvancedToPhase2(ctx context.Context, candidateID string, advanced bool) (models.Candidate, error) {
	cand, err := c.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return models.Candidate{}, err
	}
	if _, err := c.editableSession(ctx, cand.SessionID); err != nil {
		return models.Candidate{}, err
	}

	cand, err = c.store.SetAdvancedToPhase2(ctx, candidateID, advanced)
	if err != nil {
		return models.Candidate{}, err
	}
	c.logger.Info().
		Str("session_id", cand.SessionID).
		Str("candidate_id", cand.ID).
		Bool("advanced", advanced).
		Msg("candidate phase 2 eligibility set")
	return cand, nil
}

func (c *Controller) editableSession(ctx context.Context, sessionID string) (models.Session, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Status == models.StatusArchived {
		return models.Session{}, fmt.Errorf("session archived: %w", models.ErrPhaseClosed)
	}
	return sess, nil
}

func (c *Controller) sessionRole(ctx context.Context, sessionID, roleID string) (models.Role, error) {
	if roleID == "" {
		return models.Role{}, fmt.Errorf("role id required: %w", models.ErrInvalidInput)
	}
	role, err := c.store.GetRole(ctx, roleID)
	if err != nil {
		return models.Role{}, err
	}
	if role.SessionID != sessionID {
		return models.Role{}, fmt.Errorf("role %s not in session: %w", roleID, models.ErrNotFound)
	}
	return role, nil
}

func actorPtr(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}
