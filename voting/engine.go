// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/metrics"
	"github.com/danielhkuo/deliberation/models"
)

// Store is the slice of the persistence gateway the engines need.
type Store interface {
	GetSession(ctx context.Context, id string) (models.Session, error)
	GetRole(ctx context.Context, id string) (models.Role, error)
	ListRoles(ctx context.Context, sessionID string) ([]models.Role, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, error)
	ListCandidates(ctx context.Context, sessionID string) ([]models.Candidate, error)
	ListEligibleCandidates(ctx context.Context, roleID string) ([]models.Candidate, error)

	UpsertVote(ctx context.Context, v models.Phase1Vote) (models.Phase1Vote, error)
	GetVote(ctx context.Context, sessionID, candidateID, userID string) (models.Phase1Vote, error)
	ListVotes(ctx context.Context, sessionID string) ([]models.Phase1Vote, error)

	EnsureBallot(ctx context.Context, sessionID, roleID, userID string) (models.Phase2Ballot, error)
	ListUserBallots(ctx context.Context, sessionID, userID string) ([]models.Phase2Ballot, error)
	ListBallots(ctx context.Context, sessionID string) ([]models.Phase2Ballot, error)
	ListSelections(ctx context.Context, ballotIDs ...string) ([]models.Phase2Selection, error)
	ToggleSelection(ctx context.Context, ballotID, candidateID string, quota int) (models.ToggleResult, error)
	ToggleSubmitted(ctx context.Context, ballotID string) (models.Phase2Ballot, error)
}

// Engine applies participant votes and ballot edits. Every precondition is
// checked before the first write, so a rejected call leaves stored state as
// it was.
type Engine struct {
	store  Store
	logger zerolog.Logger
}

func NewEngine(st Store) *Engine {
	return &Engine{
		store:  st,
		logger: logging.WithComponent("voting"),
	}
}

func reject(reason string, err error) error {
	metrics.RejectedMutations.WithLabelValues(reason).Inc()
	return err
}

// Phase 1

// CastVote records the user's value for a candidate, replacing any earlier
// value. Only allowed while phase 1 is open.
func (e *Engine) CastVote(ctx context.Context, sessionID, candidateID, userID string, value models.VoteValue) (models.Phase1Vote, error) {
	if userID == "" {
		return models.Phase1Vote{}, reject("unauthenticated", fmt.Errorf("cast vote: %w", models.ErrUnauthenticated))
	}
	if !value.Valid() {
		return models.Phase1Vote{}, reject("invalid_vote", fmt.Errorf("vote %q: %w", value, models.ErrInvalidVote))
	}

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Phase1Vote{}, err
	}
	if sess.Status != models.StatusPhase1Open {
		return models.Phase1Vote{}, reject("phase_closed", fmt.Errorf("cast vote in %s: %w", sess.Status, models.ErrPhaseClosed))
	}

	cand, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return models.Phase1Vote{}, err
	}
	if cand.SessionID != sessionID {
		return models.Phase1Vote{}, fmt.Errorf("candidate %s not in session: %w", candidateID, models.ErrNotFound)
	}

	vote, err := e.store.UpsertVote(ctx, models.Phase1Vote{
		SessionID:   sessionID,
		CandidateID: candidateID,
		UserID:      userID,
		Value:       value,
	})
	if err != nil {
		return models.Phase1Vote{}, err
	}

	metrics.VotesCast.WithLabelValues(string(value)).Inc()
	e.logger.Debug().
		Str("session_id", sessionID).
		Str("candidate_id", candidateID).
		Str("vote", string(value)).
		Msg("vote cast")
	return vote, nil
}

// MyVote returns the user's current value for a candidate, if any. Votes
// stay readable after phase 1 closes.
func (e *Engine) MyVote(ctx context.Context, sessionID, candidateID, userID string) (models.MyVoteResponse, error) {
	if userID == "" {
		return models.MyVoteResponse{}, fmt.Errorf("my vote: %w", models.ErrUnauthenticated)
	}

	resp := models.MyVoteResponse{CandidateID: candidateID}
	vote, err := e.store.GetVote(ctx, sessionID, candidateID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return resp, nil
	}
	if err != nil {
		return models.MyVoteResponse{}, err
	}
	resp.Vote = &vote.Value
	return resp, nil
}

// Phase 2

// ballotTarget checks the shared phase 2 preconditions and returns the role.
func (e *Engine) ballotTarget(ctx context.Context, sessionID, roleID, userID string) (models.Role, error) {
	if userID == "" {
		return models.Role{}, reject("unauthenticated", fmt.Errorf("ballot: %w", models.ErrUnauthenticated))
	}

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Role{}, err
	}
	if sess.Status != models.StatusPhase2Open {
		return models.Role{}, reject("phase_closed", fmt.Errorf("ballot in %s: %w", sess.Status, models.ErrPhaseClosed))
	}

	role, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return models.Role{}, err
	}
	if role.SessionID != sessionID {
		return models.Role{}, fmt.Errorf("role %s not in session: %w", roleID, models.ErrNotFound)
	}
	return role, nil
}

// ToggleSelection adds or removes a candidate on the user's ballot for a
// role. Adding to a full ballot changes nothing and reports Applied=false.
func (e *Engine) ToggleSelection(ctx context.Context, sessionID, roleID, userID, candidateID string) (models.ToggleResult, error) {
	role, err := e.ballotTarget(ctx, sessionID, roleID, userID)
	if err != nil {
		return models.ToggleResult{}, err
	}

	cand, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	if cand.RoleID != role.ID || !cand.AdvancedToPhase2 {
		return models.ToggleResult{}, reject("ineligible", fmt.Errorf("candidate %s for role %s: %w", candidateID, roleID, models.ErrIneligible))
	}

	ballot, err := e.store.EnsureBallot(ctx, sessionID, roleID, userID)
	if err != nil {
		return models.ToggleResult{}, err
	}

	res, err := e.store.ToggleSelection(ctx, ballot.ID, candidateID, role.Quota)
	if err != nil {
		return models.ToggleResult{}, err
	}

	outcome := "deselected"
	switch {
	case !res.Applied:
		outcome = "quota_noop"
	case res.Selected:
		outcome = "selected"
	}
	metrics.SelectionToggles.WithLabelValues(outcome).Inc()
	e.logger.Debug().
		Str("session_id", sessionID).
		Str("ballot_id", ballot.ID).
		Str("candidate_id", candidateID).
		Str("outcome", outcome).
		Int("count", res.Count).
		Msg("selection toggled")
	return res, nil
}

// ToggleSubmit flips the submitted flag of the user's ballot for a role,
// creating the ballot if needed. Submitting does not freeze selections.
func (e *Engine) ToggleSubmit(ctx context.Context, sessionID, roleID, userID string) (models.SubmitResponse, error) {
	if _, err := e.ballotTarget(ctx, sessionID, roleID, userID); err != nil {
		return models.SubmitResponse{}, err
	}

	ballot, err := e.store.EnsureBallot(ctx, sessionID, roleID, userID)
	if err != nil {
		return models.SubmitResponse{}, err
	}
	ballot, err = e.store.ToggleSubmitted(ctx, ballot.ID)
	if err != nil {
		return models.SubmitResponse{}, err
	}

	metrics.BallotSubmits.WithLabelValues(fmt.Sprint(ballot.Submitted)).Inc()
	return models.SubmitResponse{BallotID: ballot.ID, Submitted: ballot.Submitted}, nil
}

// MyBallots returns one entry per role of the session with the user's
// ballot state and the role's eligible candidates.
func (e *Engine) MyBallots(ctx context.Context, sessionID, userID string) ([]models.RoleBallot, error) {
	if userID == "" {
		return nil, fmt.Errorf("my ballots: %w", models.ErrUnauthenticated)
	}
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	roles, err := e.store.ListRoles(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ballots, err := e.store.ListUserBallots(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	byRole := make(map[string]models.Phase2Ballot, len(ballots))
	ids := make([]string, 0, len(ballots))
	for _, b := range ballots {
		byRole[b.RoleID] = b
		ids = append(ids, b.ID)
	}
	selections, err := e.store.ListSelections(ctx, ids...)
	if err != nil {
		return nil, err
	}
	selected := make(map[string][]string)
	for _, s := range selections {
		selected[s.BallotID] = append(selected[s.BallotID], s.CandidateID)
	}

	out := make([]models.RoleBallot, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		g.Go(func() error {
			eligible, err := e.store.ListEligibleCandidates(gctx, role.ID)
			if err != nil {
				return err
			}

			rb := models.RoleBallot{Role: role, Eligible: eligible, SelectedIDs: []string{}}
			if b, ok := byRole[role.ID]; ok {
				id := b.ID
				rb.BallotID = &id
				rb.Submitted = b.Submitted
				if sel := selected[b.ID]; sel != nil {
					rb.SelectedIDs = sel
				}
			}
			rb.QuotaReached = len(rb.SelectedIDs) >= role.Quota
			out[i] = rb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
